package packets

// counts returned by a materialize run for operator feedback
type MaterializeResponse struct {
	Profile           string `json:"profile"`
	DeviceName        string `json:"device_name"`
	DosingEvents      int    `json:"dosing_events"`
	WaterChangeEvents int    `json:"water_change_events"`
}

type ProfileUploadResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
