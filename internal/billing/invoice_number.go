package billing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const invoiceSuffixBytes = 4

// NewInvoiceNumber builds an invoice number of the form
//
//	<prefix>-<company shard>-<UTC timestamp>-<random suffix>
//
// The unique index on payments.invoice_number is the real uniqueness
// authority; the random suffix keeps collisions rare enough that the
// bounded retry in GenerateInvoice almost never triggers.
func NewInvoiceNumber(prefix string, companyID uuid.UUID, at time.Time) string {
	shard := strings.ToUpper(hex.EncodeToString(companyID[:4]))
	return fmt.Sprintf("%s-%s-%s-%s", prefix, shard, at.UTC().Format("20060102T150405"), randomSuffix())
}

func randomSuffix() string {
	buf := make([]byte, invoiceSuffixBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms; degrade to a clock suffix
		return fmt.Sprintf("%08X", uint32(time.Now().UnixNano()))
	}
	return strings.ToUpper(hex.EncodeToString(buf))
}
