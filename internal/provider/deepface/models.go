package deepface

// RepresentRequest for POST /represent
type RepresentRequest struct {
	Img              string `json:"img"`               // data URI (data:image/...;base64,...)
	ModelName        string `json:"model_name"`        // "SFace", "Facenet512", etc
	DetectorBackend  string `json:"detector_backend"`  // "yunet", "retinaface", "skip", etc
	EnforceDetection bool   `json:"enforce_detection"` // false keeps 200 responses when no face is found
	Align            bool   `json:"align"`
}

// RepresentResponse from POST /represent
type RepresentResponse struct {
	Results []RepresentResult `json:"results"`
}

type RepresentResult struct {
	Embedding      []float64  `json:"embedding"`
	FacialArea     FacialArea `json:"facial_area"`
	FaceConfidence float64    `json:"face_confidence"`
}

type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}
