package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"ledgerlens-go/internal/model"
)

// TransactionStore persists materialized transactions.
type TransactionStore interface {
	SaveBatch(txs []*model.Transaction) error
}

// transactionPayload is the model output schema. Amount fields accept
// both JSON numbers and numeric strings.
type transactionPayload struct {
	Client          string          `json:"client"`
	TxnDate         string          `json:"txnDate"`
	AmountBeforeTax decimal.Decimal `json:"amountBeforeTax"`
	AmountAfterTax  decimal.Decimal `json:"amountAfterTax"`
	Currency        string          `json:"currency"`
	Category        string          `json:"category"`
	TransactionType string          `json:"transactionType"`
	PaymentMethod   string          `json:"paymentMethod"`
	InvoiceNumber   string          `json:"invoiceNumber"`
	Notes           string          `json:"notes"`
}

// Materializer converts normalized JSON payloads into transaction rows.
type Materializer struct {
	store TransactionStore
}

func NewMaterializer(store TransactionStore) *Materializer {
	return &Materializer{store: store}
}

// Materialize validates and persists the payload for one document. A
// payload may be a single object or an array of objects; an array is
// stored all-or-nothing, so one invalid entry rejects the whole batch.
func (m *Materializer) Materialize(payload json.RawMessage, doc *model.Document) (int, error) {
	var payloads []transactionPayload

	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(payload, &payloads); err != nil {
			return 0, fmt.Errorf("failed to decode transaction array: %w", err)
		}
	} else {
		var single transactionPayload
		if err := json.Unmarshal(payload, &single); err != nil {
			return 0, fmt.Errorf("failed to decode transaction object: %w", err)
		}
		payloads = append(payloads, single)
	}

	if len(payloads) == 0 {
		return 0, fmt.Errorf("payload contains no transactions")
	}

	txs := make([]*model.Transaction, 0, len(payloads))
	for i, p := range payloads {
		tx, err := buildTransaction(p, doc)
		if err != nil {
			return 0, fmt.Errorf("transaction %d: %w", i, err)
		}
		txs = append(txs, tx)
	}

	if err := m.store.SaveBatch(txs); err != nil {
		return 0, err
	}

	logrus.Infof("Materialized %d transaction(s) from document %s", len(txs), doc.PublicID)
	return len(txs), nil
}

func buildTransaction(p transactionPayload, doc *model.Document) (*model.Transaction, error) {
	if strings.TrimSpace(p.Client) == "" {
		return nil, fmt.Errorf("missing counterparty name")
	}

	txnDate, err := time.Parse("2006-01-02", p.TxnDate)
	if err != nil {
		return nil, fmt.Errorf("invalid txnDate %q: %w", p.TxnDate, err)
	}

	if p.AmountAfterTax.IsZero() {
		return nil, fmt.Errorf("missing amountAfterTax")
	}

	if strings.TrimSpace(p.Category) == "" {
		return nil, fmt.Errorf("missing category")
	}

	amountBeforeTax := p.AmountBeforeTax
	if amountBeforeTax.IsZero() {
		amountBeforeTax = p.AmountAfterTax
	}

	txType := strings.ToUpper(strings.TrimSpace(p.TransactionType))
	if txType != model.TypeIncome {
		txType = model.TypeExpense
	}

	return &model.Transaction{
		UserID:           doc.UserID,
		DocumentID:       &doc.ID,
		DocumentPublicID: &doc.PublicID,
		CounterpartyName: strings.TrimSpace(p.Client),
		TxnDate:          txnDate,
		AmountBeforeTax:  amountBeforeTax,
		AmountAfterTax:   p.AmountAfterTax,
		Currency:         strings.TrimSpace(p.Currency),
		Category:         strings.TrimSpace(p.Category),
		TransactionType:  txType,
		PaymentMethod:    strings.TrimSpace(p.PaymentMethod),
		InvoiceNumber:    strings.TrimSpace(p.InvoiceNumber),
		Notes:            strings.TrimSpace(p.Notes),
	}, nil
}
