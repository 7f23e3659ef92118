package shell

import (
	"bytes"
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/dnswd/cukai"
	"github.com/dnswd/cukai/internal/record"
	"github.com/dnswd/cukai/internal/service"
	"github.com/dnswd/cukai/internal/tax"
)

type brokenStore struct{ record.MemoryStore }

func (*brokenStore) Append(context.Context, cukai.Record) error { return errors.New("disk full") }

func (*brokenStore) ReadAll(context.Context) ([]cukai.Record, error) {
	return nil, errors.New("permission denied")
}

// noReliefs answers every optional relief prompt with an empty line.
const noReliefs = "\n\n\n\n\n\n"

var _ = Describe("Shell", func() {
	var (
		store *record.MemoryStore
		svc   *service.AssessmentService
		out   *bytes.Buffer
		opts  Options
	)

	BeforeEach(func() {
		store = record.NewMemoryStore()
		svc = service.New(store)
		out = &bytes.Buffer{}
		opts = Options{}
	})

	run := func(script string) string {
		sh := New(strings.NewReader(script), out, svc, opts)
		Expect(sh.Run(context.Background())).To(Succeed())
		return out.String()
	}

	Context("registration", func() {
		It("re-prompts for a malformed IC and saves the estimate", func() {
			got := run("1\nalice\n123\n123456789012\n30000\n" + noReliefs + "4\n")

			Expect(got).To(ContainSubstring("Invalid IC number! Must be 12 digits."))
			Expect(got).To(ContainSubstring("Your password (last 4 digits of IC): 9012"))
			Expect(got).To(ContainSubstring("Individual Relief: RM9,000.00"))
			Expect(got).To(ContainSubstring("Total Relief: RM9,000.00"))
			Expect(got).To(ContainSubstring("Chargeable Income: RM21,000.00"))
			Expect(got).To(ContainSubstring("RM20,000.00 to RM35,000.00 @ 3%: RM30.00 on RM1,000.00"))
			Expect(got).To(ContainSubstring("Tax Payable: RM180.00"))
			Expect(got).To(ContainSubstring("Data saved successfully!"))
			Expect(got).To(HaveSuffix("Thank you for using Malaysian Tax Input Program!\n"))

			recs, err := store.ReadAll(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(1))
			Expect(recs[0].UserID).To(Equal("alice"))
			Expect(recs[0].ICNumber).To(Equal("123456789012"))
			Expect(recs[0].TaxPayable.Fixed()).To(Equal("180.00"))
		})

		It("lists the relief catalog with caps", func() {
			got := run("1\nalice\n123456789012\n30000\n" + noReliefs + "4\n")

			Expect(got).To(ContainSubstring("1. Individual Relief: RM9,000.00"))
			Expect(got).To(ContainSubstring("3. Child Relief: RM8,000.00 per dependant"))
			Expect(got).To(ContainSubstring("5. Lifestyle Relief: Up to RM2,500.00"))
		})
	})

	Context("login", func() {
		It("computes tax for valid credentials", func() {
			got := run("2\nbob\n9012\n123456789012\n50000\n3000\n\n\n\n\n\n4\n")

			Expect(got).To(ContainSubstring("Please enter your IC number for verification:"))
			Expect(got).To(ContainSubstring("Total Relief: RM12,000.00"))
			Expect(got).To(ContainSubstring("Tax Payable: RM780.00"))
		})

		It("rejects a wrong password and returns to the menu", func() {
			got := run("2\nbob\n1111\n123456789012\n4\n")

			Expect(got).To(ContainSubstring("Login failed! Invalid credentials."))
			Expect(got).NotTo(ContainSubstring("Tax Payable"))
			Expect(store.ReadAll(context.Background())).To(BeNil())
		})

		It("pays no tax when relief exceeds income", func() {
			got := run("2\nbob\n9012\n123456789012\n10000\n6000\n\n\n\n\n\n4\n")

			Expect(got).To(ContainSubstring("Chargeable Income: -RM5,000.00"))
			Expect(got).To(ContainSubstring("Tax Payable: RM0.00"))
		})
	})

	Context("tax inputs", func() {
		It("restarts input after non-numeric or negative values", func() {
			got := run("1\nal\n123456789012\nabc\n30000\n-5\n30000\n" + noReliefs + "4\n")

			Expect(strings.Count(got, "Invalid input! Please enter numeric values.")).To(Equal(2))
			Expect(strings.Count(got, "=== Tax Calculation Input ===")).To(Equal(3))
			Expect(got).To(ContainSubstring("Tax Payable: RM180.00"))
		})

		It("clamps reliefs to their cap when enforcement is on", func() {
			opts.EnforceCaps = true
			got := run("1\nal\n123456789012\n30000\n\n\n\n9999\n\n\n4\n")

			Expect(got).To(ContainSubstring("Lifestyle Relief is capped at RM2,500.00; using RM2,500.00."))
			Expect(got).To(ContainSubstring("Total Relief: RM11,500.00"))
		})

		It("accepts amounts above the cap when enforcement is off", func() {
			got := run("1\nal\n123456789012\n30000\n\n\n\n9999\n\n\n4\n")

			Expect(got).NotTo(ContainSubstring("capped"))
			Expect(got).To(ContainSubstring("Total Relief: RM18,999.00"))
		})

		It("uses a configured relief catalog", func() {
			opts.Reliefs = []tax.Relief{
				{Key: "individual", Label: "Individual Relief", Amount: decimal.NewFromInt(9000), Mandatory: true},
				{Key: "zakat", Label: "Zakat"},
			}
			got := run("1\nal\n123456789012\n30000\n1000\n4\n")

			Expect(got).To(ContainSubstring("2. Zakat\n"))
			Expect(got).To(ContainSubstring("Total Relief: RM10,000.00"))
			Expect(got).To(ContainSubstring("Tax Payable: RM150.00"))
		})
	})

	Context("records", func() {
		It("reports when nothing is stored", func() {
			Expect(run("3\n4\n")).To(ContainSubstring("No tax records found!"))
		})

		It("prints saved records as a table", func() {
			got := run("1\nalice\n123456789012\n30000\n" + noReliefs + "3\n4\n")

			Expect(got).To(ContainSubstring("=== All Tax Records ==="))
			Expect(got).To(MatchRegexp(`user_id\s+ic_number\s+income\s+tax_relief\s+tax_payable`))
			Expect(got).To(MatchRegexp(`alice\s+123456789012\s+30000\.00\s+9000\.00\s+180\.00`))
		})
	})

	Context("store failures", func() {
		BeforeEach(func() {
			svc = service.New(&brokenStore{})
		})

		It("shows the estimate and keeps running when saving fails", func() {
			got := run("1\nalice\n123456789012\n30000\n" + noReliefs + "3\n4\n")

			Expect(got).To(ContainSubstring("Tax Payable: RM180.00"))
			Expect(got).To(ContainSubstring("Could not save record: save record: disk full"))
			Expect(got).To(ContainSubstring("Could not read tax records: permission denied"))
			Expect(got).To(ContainSubstring("Thank you for using"))
		})
	})

	Context("menu", func() {
		It("rejects unknown choices", func() {
			Expect(run("9\n4\n")).To(ContainSubstring("Invalid choice! Please try again."))
		})

		It("ends quietly when input runs out", func() {
			got := run("1\nalice\n")
			Expect(got).To(ContainSubstring("Enter your IC number (12 digits): "))
			Expect(got).NotTo(ContainSubstring("Thank you"))
		})

		It("accepts a final line without newline", func() {
			Expect(run("4")).To(ContainSubstring("Thank you"))
		})

		It("stops when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			sh := New(strings.NewReader("4\n"), out, svc, opts)
			Expect(sh.Run(ctx)).To(MatchError(context.Canceled))
		})
	})
})

var _ = Describe("FormatSlice", func() {
	It("renders the open-ended top bracket", func() {
		slices := tax.Default.Breakdown(decimal.NewFromInt(2_100_000))
		Expect(FormatSlice(slices[len(slices)-1])).
			To(Equal("RM2,000,000.00 above @ 30%: RM30,000.00 on RM100,000.00"))
	})
})
