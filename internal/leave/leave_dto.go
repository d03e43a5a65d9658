package leave

type CreateLeaveRequest struct {
	EmployeeID string `json:"employeeId" binding:"required,uuid"`
	Type       string `json:"type" binding:"required"`
	From       string `json:"from" binding:"required"`
	To         string `json:"to" binding:"required"`
	Reason     string `json:"reason" binding:"max=500"`
}

// UpdateLeaveRequest carries either requester edits or an approver status, never both.
type UpdateLeaveRequest struct {
	EmployeeID *string `json:"employeeId" binding:"omitempty,uuid"`
	Type       *string `json:"type"`
	From       *string `json:"from"`
	To         *string `json:"to"`
	Reason     *string `json:"reason" binding:"omitempty,max=500"`
	Status     *string `json:"status"`
}

func (r UpdateLeaveRequest) hasEdits() bool {
	return r.EmployeeID != nil || r.Type != nil || r.From != nil || r.To != nil || r.Reason != nil
}

type LeaveResponse struct {
	ID         string  `json:"id"`
	CompanyID  string  `json:"company_id"`
	EmployeeID string  `json:"employee_id"`
	Type       string  `json:"type"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Days       int     `json:"days"`
	FiscalYear int     `json:"fiscal_year"`
	Quarter    string  `json:"quarter"`
	Reason     string  `json:"reason"`
	Status     string  `json:"status"`
	CreatedBy  string  `json:"created_by"`
	ApprovedBy *string `json:"approved_by,omitempty"`
	ApprovedAt *string `json:"approved_at,omitempty"`
	RejectedBy *string `json:"rejected_by,omitempty"`
	RejectedAt *string `json:"rejected_at,omitempty"`
	CreatedAt  string  `json:"created_at"`
}
