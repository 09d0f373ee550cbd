package model

// User is the listener the session was sampled from.
type User struct {
	UserID            string `json:"user_id"`
	AgeGroup          string `json:"age_group,omitempty"`
	Country           string `json:"country,omitempty"`
	Gender            string `json:"gender,omitempty"`
	PreferredLanguage string `json:"preferred_language,omitempty"`
}

// Demographics are the profile fields that are given, not inferred.
type Demographics struct {
	AgeGroup          string `json:"age_group"`
	Country           string `json:"country"`
	Gender            string `json:"gender"`
	PreferredLanguage string `json:"preferred_language"`
}

// Merge returns d with empty fields taken from fallback.
func (d Demographics) Merge(fallback Demographics) Demographics {
	if d.AgeGroup == "" {
		d.AgeGroup = fallback.AgeGroup
	}
	if d.Country == "" {
		d.Country = fallback.Country
	}
	if d.Gender == "" {
		d.Gender = fallback.Gender
	}
	if d.PreferredLanguage == "" {
		d.PreferredLanguage = fallback.PreferredLanguage
	}
	return d
}

// Demographics returns the demographic fields the user carries.
func (u User) Demographics() Demographics {
	return Demographics{
		AgeGroup:          u.AgeGroup,
		Country:           u.Country,
		Gender:            u.Gender,
		PreferredLanguage: u.PreferredLanguage,
	}
}

// SessionData is the read-only input of one generation run.
type SessionData struct {
	SessionID string `json:"session_id"`
	User      User   `json:"user"`
	Liked     Tracks `json:"liked"`
	Pool      Tracks `json:"pool"`
	// Source names the dataset the session came from; it is part of the output path.
	Source string `json:"source"`
}
