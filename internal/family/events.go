package family

// UpdateField rewrites one form field and re-runs its validator.
type UpdateField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (UpdateField) EventType() string { return "family.update_field" }

// SetEditMember enters edit mode seeded from an existing record.
type SetEditMember struct {
	Member Member `json:"member"`
}

func (SetEditMember) EventType() string { return "family.set_edit_member" }

// CancelEdit clears the edit target and resets the form.
type CancelEdit struct{}

func (CancelEdit) EventType() string { return "family.cancel_edit" }

// CancelFieldEdit restores one field from the loaded member.
type CancelFieldEdit struct {
	Key string `json:"key"`
}

func (CancelFieldEdit) EventType() string { return "family.cancel_field_edit" }

// Save requests the guarded save transition.
type Save struct{}

func (Save) EventType() string { return "family.save" }

// SetAuth records the caller's identity context.
type SetAuth struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
}

func (SetAuth) EventType() string { return "family.set_auth" }

// Logout resets the machine to its default context.
type Logout struct{}

func (Logout) EventType() string { return "family.logout" }

// ClearError clears the stored save error.
type ClearError struct{}

func (ClearError) EventType() string { return "family.clear_error" }

// saveResolved is the completion of the save effect.
type saveResolved struct {
	epoch  uint64
	member *Member
	err    error
}

func (saveResolved) EventType() string { return "family.save_resolved" }
