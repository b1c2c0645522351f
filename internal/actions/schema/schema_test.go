package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

// SchemaSuite covers the validator contract: every violation is reported in
// one pass, defaults fill absent fields, and nothing partial is returned.
type SchemaSuite struct {
	suite.Suite
	leave Schema
}

func TestSchemaSuite(t *testing.T) {
	suite.Run(t, new(SchemaSuite))
}

func (s *SchemaSuite) SetupTest() {
	s.leave = New(
		String("startDate").Required().Date(),
		String("endDate").Required().Date(),
		String("type").Enum("VACATION", "SICK").Default("VACATION"),
		String("reason").MaxLen(10),
		Bool("force").Default(false),
	).With(DateNotBefore("startDate", "endDate"))
}

func (s *SchemaSuite) rules(err error) map[string]string {
	out := map[string]string{}
	for _, v := range dErrors.ViolationsOf(err) {
		out[v.Field] = v.Rule
	}
	return out
}

func (s *SchemaSuite) TestAppliesDefaults() {
	out, err := s.leave.Validate(map[string]any{"startDate": "2025-01-01", "endDate": "2025-01-05"})
	s.Require().NoError(err)
	s.Equal("VACATION", out["type"])
	s.Equal(false, out["force"])
	s.NotContains(out, "reason")
}

func (s *SchemaSuite) TestReportsEveryViolation() {
	_, err := s.leave.Validate(map[string]any{
		"startDate": "01/01/2025",
		"type":      "HOLIDAY",
		"reason":    "far too long a reason",
		"force":     "yes",
		"extra":     1,
	})
	s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Equal(map[string]string{
		"startDate": "format",
		"endDate":   "required",
		"type":      "enum",
		"reason":    "max_length",
		"force":     "type",
		"extra":     "unknown",
	}, s.rules(err))
}

func (s *SchemaSuite) TestRejectsImpossibleCalendarDate() {
	_, err := s.leave.Validate(map[string]any{"startDate": "2025-02-30", "endDate": "2025-03-01"})
	s.Equal("format", s.rules(err)["startDate"])
}

func (s *SchemaSuite) TestCrossFieldRuleRunsAfterFields() {
	_, err := s.leave.Validate(map[string]any{"startDate": "2025-01-05", "endDate": "2025-01-01"})
	s.Equal(map[string]string{"endDate": "date_order"}, s.rules(err))
}

func (s *SchemaSuite) TestCrossFieldRuleReportedAlongsideFieldViolations() {
	_, err := s.leave.Validate(map[string]any{
		"startDate": "2025-01-05",
		"endDate":   "2025-01-01",
		"reason":    "far too long a reason",
	})
	s.Equal(map[string]string{"reason": "max_length", "endDate": "date_order"}, s.rules(err))
}

func (s *SchemaSuite) TestCrossFieldRuleSkipsFailedFields() {
	pay := New(
		Number("hourlyRate").Range(0, 100),
		Number("monthlySalary").Range(0, 10000),
	).With(AtLeastOne("hourlyRate", "monthlySalary"))

	_, err := pay.Validate(map[string]any{"monthlySalary": -1})
	s.Equal(map[string]string{"monthlySalary": "minimum"}, s.rules(err), "a present but invalid alternative is not reported as missing")

	_, err = pay.Validate(map[string]any{})
	s.Equal(map[string]string{"hourlyRate": "one_of_required"}, s.rules(err))
}

func (s *SchemaSuite) TestNumbers() {
	sch := New(
		Integer("month").Required().Range(1, 12),
		Number("amount").Required().Range(-100000, 100000),
	)

	s.Run("json.Number and float inputs normalize", func() {
		out, err := sch.Validate(map[string]any{"month": json.Number("3"), "amount": 12.5})
		s.Require().NoError(err)
		s.Equal(int64(3), out["month"])
		s.Equal(12.5, out["amount"])
	})

	s.Run("fractional integer and out of range", func() {
		_, err := sch.Validate(map[string]any{"month": 2.5, "amount": 200000})
		s.Equal(map[string]string{"month": "type", "amount": "maximum"}, s.rules(err))
	})

	s.Run("below minimum", func() {
		_, err := sch.Validate(map[string]any{"month": 0, "amount": 0})
		s.Equal(map[string]string{"month": "minimum"}, s.rules(err))
	})

	s.Run("unbounded integer outside int64", func() {
		count := New(Integer("count").Required())
		for _, v := range []any{1e300, -1e300, json.Number("9223372036854775808"), float64(1 << 63)} {
			_, err := count.Validate(map[string]any{"count": v})
			s.Equal(map[string]string{"count": "type"}, s.rules(err), "%v", v)
		}

		out, err := count.Validate(map[string]any{"count": json.Number("-9223372036854775808")})
		s.Require().NoError(err)
		s.Equal(int64(-1<<63), out["count"])
	})
}

func (s *SchemaSuite) TestNestedObjectsAndArrays() {
	sch := New(
		Array("payslips", Object("",
			String("userId").Required(),
			String("documentUrl").Required().Pattern(`^https://`),
		)).Required().Len(1, 3),
		Object("period", Integer("year").Required()).Required(),
	)

	s.Run("valid", func() {
		out, err := sch.Validate(map[string]any{
			"payslips": []any{map[string]any{"userId": "u1", "documentUrl": "https://x/1.pdf"}},
			"period":   map[string]any{"year": 2026},
		})
		s.Require().NoError(err)
		items := out["payslips"].([]any)
		s.Len(items, 1)
		s.Equal("u1", items[0].(map[string]any)["userId"])
	})

	s.Run("violations carry element paths", func() {
		_, err := sch.Validate(map[string]any{
			"payslips": []any{
				map[string]any{"userId": "u1", "documentUrl": "http://x"},
				map[string]any{"documentUrl": "https://x"},
			},
			"period": map[string]any{},
		})
		s.Equal(map[string]string{
			"payslips[0].documentUrl": "pattern",
			"payslips[1].userId":      "required",
			"period.year":             "required",
		}, s.rules(err))
	})

	s.Run("array bounds", func() {
		_, err := sch.Validate(map[string]any{"payslips": []any{}, "period": map[string]any{"year": 1}})
		s.Equal(map[string]string{"payslips": "min_items"}, s.rules(err))
	})
}

func (s *SchemaSuite) TestNullIsAbsent() {
	out, err := s.leave.Validate(map[string]any{"startDate": "2025-01-01", "endDate": "2025-01-01", "type": nil})
	s.Require().NoError(err)
	s.Equal("VACATION", out["type"])
}

func (s *SchemaSuite) TestExamplePassesValidation() {
	sch := New(
		String("intentId").Required().Pattern(`^[0-9a-f-]{36}$`).Example("0b6f3c5e-8a1d-4e2b-9c7f-1a2b3c4d5e6f"),
		String("code").Len(3, 8),
		Integer("year").Required().Range(2000, 2100),
		Number("rate").Min(12.5),
		Array("tags", String("").Len(2, 10)).Len(2, 4),
		Object("shift", String("start").Time(), String("day").Date()),
		Number("hourly"),
		Number("monthly"),
	).With(AtLeastOne("hourly", "monthly"))

	example := sch.Example()
	out, err := sch.Validate(example)
	s.Require().NoError(err)
	s.Equal(int64(2000), out["year"])
	s.Equal("xxx", out["code"])
	s.Len(out["tags"], 2)

	_, err = s.leave.Validate(s.leave.Example())
	s.NoError(err)
}

func (s *SchemaSuite) TestJSONSchema() {
	js := s.leave.JSONSchema()
	s.Equal("object", js["type"])
	s.Equal([]string{"startDate", "endDate"}, js["required"])
	props := js["properties"].(map[string]any)
	s.Equal("date", props["startDate"].(map[string]any)["format"])
	s.Equal("VACATION", props["type"].(map[string]any)["default"])
	s.Equal(false, js["additionalProperties"])

	withExample := New(String("url").Pattern(`^https://`).Example("https://docs.example/a.pdf")).JSONSchema()
	url := withExample["properties"].(map[string]any)["url"].(map[string]any)
	s.Equal([]any{"https://docs.example/a.pdf"}, url["examples"])
}
