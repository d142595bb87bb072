package httpapi

type CreateUploadURLResponse struct {
	UploadURL string `json:"uploadURL"`
	AssetID   string `json:"assetId"`
	StreamUID string `json:"streamUID"` // = AssetID, для старых клиентов
}

type RegisterRequest struct {
	AssetID     string `json:"assetId"`
	CandidateID string `json:"candidateId"`
}

type ChangeStatusRequest struct {
	Status string `json:"status"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type ChangeStatusResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
