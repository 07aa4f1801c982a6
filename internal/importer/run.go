package importer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/dues-dev/dues/internal/model"
	"github.com/dues-dev/dues/internal/store"
)

const instrumentationName = "github.com/dues-dev/dues/internal/importer"

// maxLineSize bounds a single input row.
const maxLineSize = 1 << 20

// Option configures an importer.
type Option func(*base)

// WithLogger sets the logger rows and summaries are written to.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) { b.logger = l }
}

// base holds what every importer shares: the store, logging and telemetry.
type base struct {
	store  Store
	logger *slog.Logger
	tracer trace.Tracer
	rows   metric.Int64Counter
}

func newBase(s Store, opts []Option) base {
	b := base{
		store:  s,
		logger: slog.Default(),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(&b)
	}

	rows, err := otel.Meter(instrumentationName).Int64Counter("dues.import.rows",
		metric.WithDescription("Imported rows by outcome"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		otel.Handle(err)
		rows = noop.Int64Counter{}
	}
	b.rows = rows
	return b
}

// line is one input row. Fields is nil for a blank line; Err is set when
// the row is not valid CSV or is too long.
type line struct {
	No     int
	Raw    string
	Fields []string
	Err    error
}

// ErrLineTooLong marks a row longer than maxLineSize. The rest of the row is
// dropped and reading resumes with the next one.
var ErrLineTooLong = fmt.Errorf("row longer than %d bytes", maxLineSize)

// eachLine splits r into rows, keeping each row's raw text and the 1-based
// number of the line it starts on. A quoted field may span several lines.
// An error from fn stops the scan and is returned as is.
func eachLine(r io.Reader, fn func(line) error) error {
	br := bufio.NewReader(r)
	no := 0
	for {
		raw, n, tooLong, err := readRecord(br)
		if n > 0 {
			l := line{No: no + 1, Raw: raw}
			switch {
			case tooLong:
				l.Err = ErrLineTooLong
			case strings.TrimSpace(raw) != "":
				l.Fields, l.Err = splitRow(raw)
			}
			if ferr := fn(l); ferr != nil {
				return ferr
			}
			no += n
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading line %d: %w", no+1, err)
		}
	}
}

// readRecord reads physical lines until no quoted field is left open. n is
// the number of lines consumed.
func readRecord(br *bufio.Reader) (raw string, n int, tooLong bool, err error) {
	var sb strings.Builder
	for {
		text, ok, long, rerr := readPhysical(br, maxLineSize-sb.Len())
		if !ok {
			return sb.String(), n, tooLong, rerr
		}
		if n > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(text)
		n++
		tooLong = tooLong || long
		if rerr != nil || tooLong || !inQuotes(sb.String()) {
			return sb.String(), n, tooLong, rerr
		}
	}
}

// readPhysical reads one line without its line ending, keeping at most
// budget bytes. ok is false when nothing was left to read.
func readPhysical(br *bufio.Reader, budget int) (text string, ok, tooLong bool, err error) {
	var sb strings.Builder
	for {
		chunk, rerr := br.ReadSlice('\n')
		if len(chunk) > 0 {
			ok = true
		}
		if !tooLong {
			if keep := budget - sb.Len(); len(chunk) > keep {
				sb.Write(chunk[:max(keep, 0)])
				tooLong = true
			} else {
				sb.Write(chunk)
			}
		}
		if errors.Is(rerr, bufio.ErrBufferFull) {
			continue
		}
		text = strings.TrimSuffix(sb.String(), "\n")
		text = strings.TrimRight(text, "\r")
		return text, ok, tooLong, rerr
	}
}

// inQuotes reports whether s ends inside a quoted field, following the
// rules splitRow reads with: a field is quoted only when it starts with a
// quote, "" is an escaped quote, and a stray quote is kept literally.
func inQuotes(s string) bool {
	quoted, fieldStart := false, true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quoted:
			if c != '"' {
				continue
			}
			if i+1 < len(s) && s[i+1] == '"' {
				i++
				continue
			}
			if i+1 == len(s) || s[i+1] == ';' || s[i+1] == '\n' {
				quoted = false
			}
		case fieldStart && c == '"':
			quoted, fieldStart = true, false
		case c == ';' || c == '\n':
			fieldStart = true
		default:
			fieldStart = false
		}
	}
	return quoted
}

func splitRow(raw string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(raw))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.Read()
}

// run drives one import: it opens a span, feeds every line to row and
// returns the accumulated report, also on error.
func (b *base) run(ctx context.Context, format string, src Source, row func(context.Context, *Report, line) error) (*Report, error) {
	ctx, span := b.tracer.Start(ctx, "importer.import",
		trace.WithAttributes(
			attribute.String("import.format", format),
			attribute.String("import.source", src.Name),
		),
	)
	defer span.End()

	rep := &Report{Format: format, Source: src.Name}
	err := eachLine(src.Reader, func(l line) error {
		return row(ctx, rep, l)
	})

	sum := rep.Summary()
	span.SetAttributes(
		attribute.Int("import.created", sum.Created),
		attribute.Int("import.duplicate", sum.Duplicate),
		attribute.Int("import.unresolved", sum.Unresolved),
		attribute.Int("import.malformed", sum.Malformed),
		attribute.Int("import.skipped", sum.Skipped),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Error("import aborted", "format", format, "source", src.Name, "rows", len(rep.Rows), "err", err)
		return rep, err
	}

	b.logger.Info("import finished",
		"format", format,
		"source", src.Name,
		"created", sum.Created,
		"duplicate", sum.Duplicate,
		"unresolved", sum.Unresolved,
		"malformed", sum.Malformed,
		"skipped", sum.Skipped,
	)
	return rep, nil
}

// record appends res to the report, logs it and counts it.
func (b *base) record(ctx context.Context, rep *Report, res RowResult) {
	rep.Rows = append(rep.Rows, res)
	b.rows.Add(ctx, 1, metric.WithAttributes(
		attribute.String("format", rep.Format),
		attribute.String("status", string(res.Status)),
	))

	attrs := []any{"source", rep.Source, "line", res.Line, "status", res.Status}
	if res.Payer != "" {
		attrs = append(attrs, "payer", res.Payer)
	}
	switch res.Status {
	case StatusCreated:
		b.logger.Debug("payment created", append(attrs, "amount", res.Amount.String())...)
	case StatusSkipped:
		b.logger.Debug("row skipped", append(attrs, "reason", res.Reason)...)
	default:
		b.logger.Warn("row not imported", append(attrs, "reason", res.Reason, "raw", res.Raw)...)
	}
}

// resolveMember matches a name to exactly one member. A zero status means
// success; any other status is the row's outcome. The error is set only
// when the store fails.
func (b *base) resolveMember(ctx context.Context, first, last string, caseSensitive bool) (model.Member, Status, error) {
	matches, err := b.store.FindMembersByName(ctx, first, last, caseSensitive)
	if err != nil {
		return model.Member{}, "", fmt.Errorf("looking up member %q %q: %w", first, last, err)
	}
	switch len(matches) {
	case 0:
		return model.Member{}, StatusUserNotFound, nil
	case 1:
		return matches[0], "", nil
	default:
		return model.Member{}, StatusAmbiguous, nil
	}
}

// lookupMethod returns the method called name. ok is false if there is
// none; the error is set only when the store fails.
func (b *base) lookupMethod(ctx context.Context, name string) (pm model.PaymentMethod, ok bool, err error) {
	pm, err = b.store.FindPaymentMethodByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return model.PaymentMethod{}, false, nil
	}
	if err != nil {
		return model.PaymentMethod{}, false, fmt.Errorf("looking up payment method %q: %w", name, err)
	}
	return pm, true, nil
}

// create stores p and records the row as created.
func (b *base) create(ctx context.Context, rep *Report, res RowResult, p *model.Payment) error {
	if err := b.store.CreatePayment(ctx, p); err != nil {
		return fmt.Errorf("line %d: creating payment: %w", res.Line, err)
	}
	res.Status = StatusCreated
	res.PaymentID = p.ID
	res.MemberID = p.MemberID
	res.Amount = p.Amount
	b.record(ctx, rep, res)
	return nil
}

var dateLayouts = []string{"2006-01-02", "02.01.2006"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errors.New("missing amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}
