package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ledgerlens-go/internal/model"
)

// ListTransactions returns the user's transactions, optionally
// filtered by ?type=INCOME or ?type=EXPENSE.
func (h *Handlers) ListTransactions(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}

	var txs []model.Transaction
	var err error

	txType := strings.ToUpper(c.Query("type"))
	switch txType {
	case "":
		txs, err = h.transactions.ListByUser(user.ID)
	case model.TypeIncome, model.TypeExpense:
		txs, err = h.transactions.ListByUserAndType(user.ID, txType)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be INCOME or EXPENSE"})
		return
	}

	if err != nil {
		logrus.Errorf("Failed to list transactions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}
