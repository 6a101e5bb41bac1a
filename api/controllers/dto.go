package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/cardrail/backend/pkg/db/models"
)

type entryResponse struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Type      string    `json:"type"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
}

type transactionResponse struct {
	ID            uuid.UUID       `json:"id"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	IsSandbox     bool            `json:"is_sandbox"`
	PostedAt      time.Time       `json:"posted_at"`
	Entries       []entryResponse `json:"entries"`
}

type accountResponse struct {
	ID       uuid.UUID  `json:"id"`
	Code     string     `json:"code"`
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	OwnerID  *uuid.UUID `json:"owner_id,omitempty"`
	Currency string     `json:"currency"`
	Balance  string     `json:"balance"`
}

type statementResponse struct {
	ID           uuid.UUID `json:"id"`
	AccountID    uuid.UUID `json:"account_id"`
	PeriodStart  string    `json:"period_start"`
	PeriodEnd    string    `json:"period_end"`
	TotalDebits  string    `json:"total_debits"`
	TotalCredits string    `json:"total_credits"`
	LineCount    int       `json:"line_count"`
	GeneratedAt  time.Time `json:"generated_at"`
}

type discrepancyResponse struct {
	ID             uuid.UUID  `json:"id"`
	TransactionID  *uuid.UUID `json:"transaction_id,omitempty"`
	ExternalToken  string     `json:"external_token"`
	ExternalAmount string     `json:"external_amount"`
	LedgerAmount   string     `json:"ledger_amount"`
	Reason         string     `json:"reason"`
}

type settlementReportResponse struct {
	ID                 uuid.UUID             `json:"id"`
	Date               string                `json:"date"`
	Status             string                `json:"status"`
	TotalAmountSettled string                `json:"total_amount_settled"`
	TransactionsCount  int                   `json:"transactions_count"`
	Discrepancies      []discrepancyResponse `json:"discrepancies"`
}

func toTransactionResponse(txn *models.Transaction) transactionResponse {
	entries := make([]entryResponse, 0, len(txn.Entries))
	for _, entry := range txn.Entries {
		entries = append(entries, entryResponse{
			ID:        entry.ID,
			AccountID: entry.AccountID,
			Type:      string(entry.Type),
			Amount:    entry.Amount.StringFixed(4),
			Currency:  string(entry.Currency),
		})
	}
	return transactionResponse{
		ID:            txn.ID,
		ReferenceType: string(txn.ReferenceType),
		ReferenceID:   txn.ReferenceID,
		Description:   txn.Description,
		IsSandbox:     txn.IsSandbox,
		PostedAt:      txn.PostedAt,
		Entries:       entries,
	}
}

func toAccountResponse(account *models.Account) accountResponse {
	return accountResponse{
		ID:       account.ID,
		Code:     account.Code,
		Name:     account.Name,
		Type:     string(account.Type),
		OwnerID:  account.OwnerID,
		Currency: string(account.Currency),
		Balance:  account.Balance.StringFixed(4),
	}
}

func toStatementResponse(statement *models.Statement) statementResponse {
	return statementResponse{
		ID:           statement.ID,
		AccountID:    statement.AccountID,
		PeriodStart:  statement.PeriodStart.Format("2006-01-02"),
		PeriodEnd:    statement.PeriodEnd.Format("2006-01-02"),
		TotalDebits:  statement.TotalDebits.StringFixed(4),
		TotalCredits: statement.TotalCredits.StringFixed(4),
		LineCount:    statement.LineCount,
		GeneratedAt:  statement.GeneratedAt,
	}
}

func toSettlementReportResponse(report *models.SettlementReport) settlementReportResponse {
	discrepancies := make([]discrepancyResponse, 0, len(report.Discrepancies))
	for _, d := range report.Discrepancies {
		discrepancies = append(discrepancies, discrepancyResponse{
			ID:             d.ID,
			TransactionID:  d.TransactionID,
			ExternalToken:  d.ExternalToken,
			ExternalAmount: d.ExternalAmount.StringFixed(4),
			LedgerAmount:   d.LedgerAmount.StringFixed(4),
			Reason:         string(d.Reason),
		})
	}
	return settlementReportResponse{
		ID:                 report.ID,
		Date:               report.Date.Format("2006-01-02"),
		Status:             string(report.Status),
		TotalAmountSettled: report.TotalAmountSettled.StringFixed(4),
		TransactionsCount:  report.TransactionsCount,
		Discrepancies:      discrepancies,
	}
}
