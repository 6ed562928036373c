package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SigninResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}
