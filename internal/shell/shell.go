// Package shell is the interactive menu for registering, logging in,
// estimating tax and browsing saved records.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/dnswd/cukai"
	"github.com/dnswd/cukai/internal/credential"
	"github.com/dnswd/cukai/internal/service"
	"github.com/dnswd/cukai/internal/tax"
)

const (
	msgInvalidChoice = "Invalid choice! Please try again."
	msgInvalidIC     = "Invalid IC number! Must be 12 digits."
	msgInvalidInput  = "Invalid input! Please enter numeric values."
	msgNoRecords     = "No tax records found!"
	msgRegisterFail  = "Registration failed! Invalid credentials."
	msgLoginFail     = "Login failed! Invalid credentials."
	msgSaved         = "Data saved successfully!"
	msgGoodbye       = "Thank you for using Malaysian Tax Input Program!"
)

type Shell struct {
	in          *bufio.Reader
	out         io.Writer
	svc         *service.AssessmentService
	reliefs     []tax.Relief
	enforceCaps bool
	logger      *zap.Logger

	// readSecret reads a line without echo when stdin is a terminal.
	readSecret func() (string, error)
}

type Options struct {
	Reliefs     []tax.Relief
	EnforceCaps bool
	Logger      *zap.Logger
}

func New(in io.Reader, out io.Writer, svc *service.AssessmentService, opts Options) *Shell {
	s := &Shell{
		in:          bufio.NewReader(in),
		out:         out,
		svc:         svc,
		reliefs:     opts.Reliefs,
		enforceCaps: opts.EnforceCaps,
		logger:      opts.Logger,
	}
	if s.reliefs == nil {
		s.reliefs = tax.DefaultReliefs()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		s.readSecret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(s.out)
			return string(b), err
		}
	}
	return s
}

// Run loops over the main menu until the user exits or input ends.
func (s *Shell) Run(ctx context.Context) error {
	s.println("=== Malaysian Tax Input Program ===")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.println("\nOptions:")
		s.println("1. Register New User")
		s.println("2. Login Existing User")
		s.println("3. View Tax Records")
		s.println("4. Exit")

		choice, err := s.prompt("\nEnter your choice (1-4): ")
		if err != nil {
			return endOfInput(err)
		}

		switch choice {
		case "1":
			err = s.register(ctx)
		case "2":
			err = s.login(ctx)
		case "3":
			s.showRecords(ctx)
		case "4":
			s.println(msgGoodbye)
			return nil
		default:
			s.println(msgInvalidChoice)
		}
		if err != nil {
			return endOfInput(err)
		}
	}
}

func endOfInput(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Shell) register(ctx context.Context) error {
	s.println("\n=== User Registration ===")
	userID, err := s.prompt("Enter your ID: ")
	if err != nil {
		return err
	}
	ic, err := s.prompt("Enter your IC number (12 digits): ")
	if err != nil {
		return err
	}
	for credential.CheckIC(ic) != nil {
		s.println(msgInvalidIC)
		if ic, err = s.prompt("Enter your IC number (12 digits): "); err != nil {
			return err
		}
	}
	password, _ := credential.DerivePassword(ic)
	s.printf("Your password (last 4 digits of IC): %s\n", password)

	if !s.svc.Authenticate(ic, password) {
		s.println(msgRegisterFail)
		return nil
	}
	return s.assess(ctx, userID, ic)
}

func (s *Shell) login(ctx context.Context) error {
	s.println("\n=== User Login ===")
	userID, err := s.prompt("Enter your ID: ")
	if err != nil {
		return err
	}
	password, err := s.secret("Enter your password (last 4 digits of IC): ")
	if err != nil {
		return err
	}
	s.println("Please enter your IC number for verification:")
	ic, err := s.prompt("IC Number: ")
	if err != nil {
		return err
	}

	if !s.svc.Authenticate(ic, password) {
		s.println(msgLoginFail)
		return nil
	}
	return s.assess(ctx, userID, ic)
}

func (s *Shell) assess(ctx context.Context, userID, ic string) error {
	income, relief, err := s.taxInputs()
	if err != nil {
		return err
	}

	a, err := s.svc.Assess(ctx, userID, ic, income, relief)
	s.showResult(a)
	if err != nil {
		s.printf("Could not save record: %v\n", err)
		return nil
	}
	s.println(msgSaved)
	return nil
}

// taxInputs collects income and reliefs, starting over on any bad number.
func (s *Shell) taxInputs() (income, relief cukai.Money, err error) {
	for {
		income, relief, err = s.readTaxInputs()
		if errors.Is(err, errBadNumber) {
			s.println(msgInvalidInput)
			continue
		}
		return income, relief, err
	}
}

var errBadNumber = errors.New("bad number")

func (s *Shell) readTaxInputs() (cukai.Money, cukai.Money, error) {
	s.println("\n=== Tax Calculation Input ===")
	income, err := s.amount("Enter your annual income (RM): ", false)
	if err != nil {
		return cukai.Money{}, cukai.Money{}, err
	}

	s.println("\nAvailable Tax Reliefs:")
	for i, r := range s.reliefs {
		s.printf("%d. %s\n", i+1, describeRelief(r))
	}

	claims := tax.NewClaims(s.reliefs, s.enforceCaps)
	s.println("\nEnter your tax relief amounts:")
	for _, r := range s.reliefs {
		if r.Mandatory {
			s.printf("%s: %s\n", r.Label, cukai.NewMoney(r.Amount))
			continue
		}
		amt, err := s.amount(r.Label+" (RM): ", true)
		if err != nil {
			return cukai.Money{}, cukai.Money{}, err
		}
		accepted, clamped, err := claims.Claim(r.Key, amt.Amount)
		if err != nil {
			return cukai.Money{}, cukai.Money{}, errBadNumber
		}
		if clamped {
			s.printf("%s is capped at %s; using %s.\n", r.Label, cukai.NewMoney(r.Cap), cukai.NewMoney(accepted))
		}
	}
	return income, cukai.NewMoney(claims.Total()), nil
}

// amount reads a non-negative number. Empty input is zero when optional.
func (s *Shell) amount(label string, optional bool) (cukai.Money, error) {
	line, err := s.prompt(label)
	if err != nil {
		return cukai.Money{}, err
	}
	if line == "" && optional {
		return cukai.NewMoneyZero(), nil
	}
	m, err := cukai.ParseMoney(line)
	if err != nil || m.IsNegative() {
		s.logger.Debug("rejected amount", zap.String("field", label))
		return cukai.Money{}, errBadNumber
	}
	return m, nil
}

func describeRelief(r tax.Relief) string {
	switch {
	case r.Mandatory:
		return fmt.Sprintf("%s: %s", r.Label, cukai.NewMoney(r.Amount))
	case r.PerUnit && r.Cap.IsPositive():
		return fmt.Sprintf("%s: %s per dependant", r.Label, cukai.NewMoney(r.Cap))
	case r.Cap.IsPositive():
		return fmt.Sprintf("%s: Up to %s", r.Label, cukai.NewMoney(r.Cap))
	default:
		return r.Label
	}
}

func (s *Shell) showResult(a service.Assessment) {
	s.println("\n=== Tax Calculation Results ===")
	s.printf("Annual Income: %s\n", a.Record.Income)
	s.printf("Total Relief: %s\n", a.Record.TaxRelief)
	s.printf("Chargeable Income: %s\n", a.Chargeable)
	for _, sl := range a.Slices {
		s.printf("  %s\n", FormatSlice(sl))
	}
	s.printf("Tax Payable: %s\n", a.Record.TaxPayable)
}

// FormatSlice renders one bracket line of a breakdown.
func FormatSlice(sl tax.Slice) string {
	upper := "above"
	if !sl.Unbounded {
		upper = "to " + cukai.NewMoney(sl.Upper).String()
	}
	return fmt.Sprintf("%s %s @ %s%%: %s on %s",
		cukai.NewMoney(sl.Lower), upper,
		sl.Rate.Mul(decimal.NewFromInt(100)).String(),
		cukai.NewMoney(sl.Tax.Round(2)), cukai.NewMoney(sl.Taxable))
}

func (s *Shell) showRecords(ctx context.Context) {
	recs, err := s.svc.Records(ctx)
	if err != nil {
		s.logger.Error("read records failed", zap.Error(err))
		s.printf("Could not read tax records: %v\n", err)
		return
	}
	if len(recs) == 0 {
		s.println(msgNoRecords)
		return
	}
	s.println("\n=== All Tax Records ===")
	WriteTable(s.out, recs)
}

// WriteTable prints records as aligned columns under the record header.
func WriteTable(w io.Writer, recs []cukai.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(cukai.RecordFields, "\t")+"\t")
	for _, r := range recs {
		row := r.Row()
		cols := make([]string, len(cukai.RecordFields))
		for i, name := range cukai.RecordFields {
			cols[i] = row[name]
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t")+"\t")
	}
	_ = tw.Flush()
}

func (s *Shell) prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	line, err := s.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (s *Shell) secret(label string) (string, error) {
	if s.readSecret == nil {
		return s.prompt(label)
	}
	fmt.Fprint(s.out, label)
	line, err := s.readSecret()
	return strings.TrimSpace(line), err
}

func (s *Shell) println(a ...any)               { fmt.Fprintln(s.out, a...) }
func (s *Shell) printf(format string, a ...any) { fmt.Fprintf(s.out, format, a...) }
