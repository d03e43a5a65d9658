package ledger

type TypeBalanceResponse struct {
	Allocated      int `json:"allocated"`
	Used           int `json:"used"`
	CarriedForward int `json:"carried_forward"`
	Available      int `json:"available"`
}

type BalanceResponse struct {
	EmployeeID  string                            `json:"employee_id"`
	FiscalYear  int                               `json:"fiscal_year"`
	Quarter     string                            `json:"quarter"`
	PeriodStart string                            `json:"period_start"`
	PeriodEnd   string                            `json:"period_end"`
	Balances    map[LeaveType]TypeBalanceResponse `json:"balances"`
}

type PeriodResponse struct {
	FiscalYear int    `json:"fiscal_year"`
	Quarter    string `json:"quarter"`
}

type CarryForwardRequest struct {
	EmployeeID  string `json:"employeeId" binding:"required"`
	FromYear    int    `json:"fromYear" binding:"required,min=1"`
	FromQuarter string `json:"fromQuarter" binding:"required,oneof=Q1 Q2 Q3 Q4"`
}

type CarryForwardResponse struct {
	EmployeeID     string            `json:"employee_id"`
	From           PeriodResponse    `json:"from"`
	To             PeriodResponse    `json:"to"`
	CarriedForward map[LeaveType]int `json:"carried_forward"`
}

func mapToBalanceResponse(e Entry) BalanceResponse {
	period := e.Period()
	balances := make(map[LeaveType]TypeBalanceResponse, len(LeaveTypes))
	for _, t := range LeaveTypes {
		b := e.Balance(t)
		balances[t] = TypeBalanceResponse{
			Allocated:      b.Allocated,
			Used:           b.Used,
			CarriedForward: b.CarriedForward,
			Available:      b.Available(),
		}
	}
	return BalanceResponse{
		EmployeeID:  e.EmployeeID.String(),
		FiscalYear:  period.FiscalYear,
		Quarter:     period.Quarter.String(),
		PeriodStart: period.Start().Format("2006-01-02"),
		PeriodEnd:   period.End().Format("2006-01-02"),
		Balances:    balances,
	}
}

func mapToPeriodResponse(p Period) PeriodResponse {
	return PeriodResponse{FiscalYear: p.FiscalYear, Quarter: p.Quarter.String()}
}
