package directory

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/uptrace/bun"

	"github.com/jsamuelsen/callrelay/internal/ports"
)

// Both tables predate the relay and are provisioned by other tools, so
// numeric columns are read as text and parsed leniently.

type faxRuleRecord struct {
	bun.BaseModel `bun:"table:fax2email,alias:fe"`

	Number string         `bun:"number,pk"`
	Email  string         `bun:"email,notnull"`
	Limit  sql.NullString `bun:"limit"`
}

func (r *faxRuleRecord) toPort() *ports.FaxRule {
	return &ports.FaxRule{
		Number:          r.Number,
		DeliveryAddress: strings.TrimSpace(r.Email),
		Limit:           atoiOrZero(r.Limit),
	}
}

type forwardRuleRecord struct {
	bun.BaseModel `bun:"table:forwarder,alias:fw"`

	SourceNumber string         `bun:"source_number,pk"`
	ForwardTo    string         `bun:"forward_to,notnull"`
	Delay        sql.NullString `bun:"delay"`
}

func (r *forwardRuleRecord) toPort() *ports.ForwardRule {
	return &ports.ForwardRule{
		SourceNumber:  r.SourceNumber,
		ForwardTarget: strings.TrimSpace(r.ForwardTo),
		Delay:         atoiOrZero(r.Delay),
	}
}

// atoiOrZero maps NULL, garbage and negative values to zero.
func atoiOrZero(s sql.NullString) int {
	if !s.Valid {
		return 0
	}

	n, err := strconv.Atoi(strings.TrimSpace(s.String))
	if err != nil || n < 0 {
		return 0
	}

	return n
}

func nullInt(n int) sql.NullString {
	return sql.NullString{String: strconv.Itoa(n), Valid: true}
}
