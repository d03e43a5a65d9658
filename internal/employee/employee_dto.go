package employee

type CreateEmployeeRequest struct {
	FullName       string `json:"full_name" binding:"required,max=150"`
	Email          string `json:"email" binding:"required,email"`
	EmployeeNumber string `json:"employee_number" binding:"omitempty,max=20"`
	HireDate       string `json:"hire_date" binding:"required"`
	Status         string `json:"status" binding:"omitempty,oneof=ACTIVE INACTIVE"`
}

type EmployeeResponse struct {
	ID             string `json:"id"`
	CompanyID      string `json:"company_id"`
	EmployeeNumber string `json:"employee_number"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	HireDate       string `json:"hire_date"`
	Status         string `json:"status"`
}
