package dto

type SendMessageRequest struct {
	CustomerID string `json:"customer_id"`
	Content    string `json:"content"`
}

type DriverDelayRequest struct {
	CustomerID string `json:"customer_id"`
	Content    string `json:"content"`
}

type GetDriverRequest struct {
	DriverID string `json:"driver_id"`
}

type ListLogsRequest struct {
	Type     string `json:"type" form:"type"`
	DriverID string `json:"driver_id" form:"driver_id"`
	Limit    int    `json:"limit" form:"limit"`
}
