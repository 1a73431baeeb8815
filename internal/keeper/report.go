package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/keeperhq/invkeeper/internal/venue"
	"github.com/keeperhq/invkeeper/internal/wad"
)

// ReportRow is one account-token line of an inventory report. Numeric cells
// are pre-rendered strings: "?" marks a balance that could not be read and
// "-" marks an unset bound.
type ReportRow struct {
	Account string
	Token   string
	Balance string
	Min     string
	Avg     string
	Max     string
}

// Report is a point-in-time snapshot of every tracked balance.
type Report struct {
	Rows        []ReportRow
	GeneratedAt time.Time
}

// Report reads every balance fresh, base account first and then each member
// in inventory order. A single unreadable balance gives a "?" cell rather
// than failing the whole report.
func (e *Engine) Report(ctx context.Context) (*Report, error) {
	snap, changed, err := e.snapshots.Current()
	if err != nil {
		if snap == nil {
			return nil, fmt.Errorf("load inventory: %w", err)
		}
	}
	if changed {
		e.cache.Invalidate()
	}
	cfg := snap.Config

	report := &Report{GeneratedAt: time.Now().UTC()}

	base := venue.NewLedgerAccount(cfg.Base.Name, cfg.Base.Address, e.chain)
	for _, token := range cfg.Tokens {
		row := ReportRow{Account: cfg.Base.Name, Token: token.Name, Min: "-", Avg: "-", Max: "-"}
		if bal, err := base.Balance(ctx, token); err != nil {
			e.logger.WarnContext(ctx, "report: base balance unavailable",
				slog.String("token", token.Name),
				slog.String("error", err.Error()),
			)
			row.Balance = "?"
		} else {
			row.Balance = bal.String()
		}
		report.Rows = append(report.Rows, row)
	}

	for _, m := range cfg.Members {
		adapter, err := e.cache.Get(m)
		if err != nil {
			e.logger.WarnContext(ctx, "report: adapter unavailable",
				slog.String("member", m.Name),
				slog.String("error", err.Error()),
			)
			adapter = nil
		}
		for _, mt := range m.Tokens {
			row := ReportRow{
				Account: m.Name,
				Token:   mt.TokenName,
				Balance: "?",
				Min:     formatBound(mt.Range.Min),
				Avg:     formatBound(mt.Range.Avg),
				Max:     formatBound(mt.Range.Max),
			}
			if adapter != nil {
				token, terr := cfg.TokenByName(mt.TokenName)
				if terr == nil {
					if bal, berr := adapter.Balance(ctx, token); berr != nil {
						e.logger.WarnContext(ctx, "report: balance unavailable",
							slog.String("member", m.Name),
							slog.String("token", mt.TokenName),
							slog.String("error", berr.Error()),
						)
					} else {
						row.Balance = bal.String()
					}
				}
			}
			report.Rows = append(report.Rows, row)
		}
	}
	return report, nil
}

func formatBound(w *wad.Wad) string {
	if w == nil {
		return "-"
	}
	return w.String()
}

const dumpTimeLayout = "2006-01-02 15:04:05 UTC"

// Render lays the report out as a fixed-width text table. The two label
// columns are padded with dots so long listings stay scannable; numeric
// columns are right-aligned.
func (r *Report) Render() string {
	headers := [6]string{"Account", "Token", "Balance", "Min", "Avg", "Max"}

	var widths [6]int
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range r.Rows {
		for i, cell := range row.cells() {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells [6]string, pad byte) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			if i < 2 {
				// Label columns: left-aligned, dot-filled.
				b.WriteString(cell)
				b.WriteString(" ")
				for n := len(cell) + 1; n < widths[i]+2; n++ {
					b.WriteByte(pad)
				}
			} else {
				for n := len(cell); n < widths[i]; n++ {
					b.WriteByte(' ')
				}
				b.WriteString(cell)
			}
		}
		b.WriteByte('\n')
	}

	writeRow(headers, ' ')
	for _, row := range r.Rows {
		writeRow(row.cells(), '.')
	}
	fmt.Fprintf(&b, "\nGenerated at %s\n", r.GeneratedAt.Format(dumpTimeLayout))
	return b.String()
}

func (row ReportRow) cells() [6]string {
	return [6]string{row.Account, row.Token, row.Balance, row.Min, row.Avg, row.Max}
}
