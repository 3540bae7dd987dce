package silver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CoReason-AI/coreason-etl-epar/internal/model"
)

func TestNormalizeStatus_Basic(t *testing.T) {
	cases := map[string]model.Status{
		"Authorised":                                 model.StatusApproved,
		"Refused":                                    model.StatusRejected,
		"Withdrawn":                                  model.StatusWithdrawn,
		"Suspended":                                  model.StatusSuspended,
		"Exceptional Circumstances":                  model.StatusExceptionalCircumstances,
		"Authorised under exceptional circumstances": model.StatusExceptionalCircumstances,
		"Conditional Marketing Authorisation":        model.StatusConditionalApproval,
		"Unknown Status":                             model.StatusUnknown,
		"":                                           model.StatusUnknown,
		"   ":                                        model.StatusUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeStatus(in), "input %q", in)
	}
}

func TestNormalizeStatus_LiftedBeatsSuspension(t *testing.T) {
	for _, in := range []string{
		"Suspension Lifted",
		"Lifted Suspension",
		"Suspension of Marketing Authorisation Lifted",
		"Lifted",
	} {
		assert.Equal(t, model.StatusApproved, NormalizeStatus(in), "input %q", in)
	}
}

func TestNormalizeStatus_Suspension(t *testing.T) {
	for _, in := range []string{
		"Suspended",
		"Suspension of Authorisation",
		"Marketing Authorisation Suspended",
		"Suspension",
	} {
		assert.Equal(t, model.StatusSuspended, NormalizeStatus(in), "input %q", in)
	}
}

func TestNormalizeStatus_ExpiredMeansWithdrawn(t *testing.T) {
	for _, in := range []string{
		"Expired",
		"Marketing Authorisation Expired",
		"Expired Authorisation",
	} {
		assert.Equal(t, model.StatusWithdrawn, NormalizeStatus(in), "input %q", in)
	}
}

func TestNormalizeStatus_WithdrawalNuances(t *testing.T) {
	assert.Equal(t, model.StatusWithdrawn, NormalizeStatus("Withdrawn by Applicant"))
	assert.Equal(t, model.StatusWithdrawn, NormalizeStatus("Marketing Authorisation Not Renewed"))
}

func TestNormalizeStatus_Precedence(t *testing.T) {
	cases := map[string]model.Status{
		// Refusal is terminal and beats the authorisation keyword.
		"Refused Authorisation":    model.StatusRejected,
		"Authorisation Refused":    model.StatusRejected,
		"Partially Refused":        model.StatusRejected,
		"Expired Marketing Authorisation": model.StatusWithdrawn,
		"Suspension Lifted":        model.StatusApproved,
		"Suspended Authorisation":  model.StatusSuspended,
		"Authorisation Suspended":  model.StatusSuspended,
		"Conditional Marketing Authorisation":     model.StatusConditionalApproval,
		"Withdrawn (prior Conditional approval)":  model.StatusWithdrawn,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeStatus(in), "input %q", in)
	}
}

func TestNormalizeStatus_NegationGuard(t *testing.T) {
	assert.Equal(t, model.StatusUnknown, NormalizeStatus("Not Authorised"))
	for _, in := range []string{
		"Unauthorised",
		"De-authorised",
		"Pre-authorisation",
		"Non-authorised",
	} {
		assert.NotEqual(t, model.StatusApproved, NormalizeStatus(in), "input %q", in)
	}
}

func TestNormalizeStatus_Garbage(t *testing.T) {
	assert.Equal(t, model.StatusApproved, NormalizeStatus("AUTHORISED;"))
	assert.Equal(t, model.StatusApproved, NormalizeStatus("AUTHORISED (Safety)"))
	assert.Equal(t, model.StatusSuspended, NormalizeStatus("AUTHORISED/Suspended"))
}
