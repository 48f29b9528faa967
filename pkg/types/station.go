package types

// Station is a charging station managed by this service.
type Station struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// OperatorEmails may change the station's profiles and settings in
	// addition to the global admins.
	OperatorEmails []string `json:"operatorEmails,omitempty"`
}

// HasOperator reports whether email may operate the station.
func (s Station) HasOperator(email string) bool {
	for _, e := range s.OperatorEmails {
		if e == email {
			return true
		}
	}
	return false
}
