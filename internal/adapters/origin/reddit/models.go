package reddit

// listing is the envelope both endpoints return
type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Before   string  `json:"before"`
		Children []thing `json:"children"`
	} `json:"data"`
}

// thing is one listing child; data stays generic for the entity codec
type thing struct {
	Kind string         `json:"kind"`
	Data map[string]any `json:"data"`
}

func (t thing) name() string {
	s, _ := t.Data["name"].(string)
	return s
}
