package models

// SubmitComplaintRequest is the body of POST /complaint.
type SubmitComplaintRequest struct {
	ReporterID    int64    `json:"reporter_id" binding:"required"`
	Description   string   `json:"description"`
	Location      string   `json:"location"`
	ImagePath     string   `json:"image_path"`
	ComplaintType Category `json:"complaint_type"`
}

// SubmitComplaintResponse acknowledges a created complaint.
type SubmitComplaintResponse struct {
	OK bool  `json:"ok"`
	ID int64 `json:"id"`
}

// StatusResponse lists a reporter's complaints, newest first.
type StatusResponse struct {
	OK         bool         `json:"ok"`
	Complaints []ReviewItem `json:"complaints"`
}

// ReviewListResponse lists complaints for admin review, oldest first.
type ReviewListResponse struct {
	OK    bool         `json:"ok"`
	Items []ReviewItem `json:"items"`
}

// DetailResponse carries the full decision view of one complaint.
type DetailResponse struct {
	OK   bool             `json:"ok"`
	Item *ComplaintDetail `json:"item"`
}

// UpdateStatusRequest is the body of POST /admin/update_status.
type UpdateStatusRequest struct {
	ComplaintID int64  `json:"complaint_id" binding:"required"`
	Status      Status `json:"status" binding:"required"`
	AdminID     int64  `json:"admin_id" binding:"required"`
}

// DecisionRequest is the body of POST /admin/complaint/:id/decision.
type DecisionRequest struct {
	AIStatus     Verdict   `json:"ai_status" binding:"required"`
	OverrideType *Category `json:"override_type"`
	AdminID      int64     `json:"admin_id" binding:"required"`
}

// OKResponse is the bare success envelope.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is the failure envelope shared by all endpoints.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
