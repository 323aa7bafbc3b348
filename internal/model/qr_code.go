package model

type ScanQRImageRequest struct {
	// Image is a base64 string, optionally a data URL.
	Image string `json:"image"`
}

type ScanQRImageResponse struct {
	ResolveQRResponse
}

type GenerateQRImageRequest struct {
	Payload string `form:"payload"`
	Size    int    `form:"size"`
}

type GenerateQRImageResponse struct {
	DataURL string `json:"data_url"`
}
