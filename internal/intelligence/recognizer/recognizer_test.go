package recognizer

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestEngine(t *testing.T, opts ...Option) Recognizer {
	t.Helper()
	return NewEngine(DefaultConfig(), nil, opts...)
}

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, 10, 30, 0, 0, time.UTC)
	}
}

const summonsText = `STATE OF MINNESOTA                            DISTRICT COURT
COUNTY OF HENNEPIN                 HOUSING COURT DIVISION

ABC Properties LLC,
          Plaintiff,
v.
John Q. Tenant,
          Defendant.

SUMMONS

Case No: 27-CV-25-3456

THE STATE OF MINNESOTA TO THE ABOVE-NAMED DEFENDANT:

You are hereby summoned and required to serve upon plaintiff's
attorney a written answer to the attached complaint within
twenty (20) days after service of this summons upon you. If you
fail to respond, judgment by default will be entered against you.`

const leaseText = `RESIDENTIAL LEASE AGREEMENT

LANDLORD: Maplewood Properties LLC
TENANT: John Q. Tenant
PREMISES: 123 Main Street, Minneapolis, MN 55401

MONTHLY RENT: $1,200.00 due on the first day of each month.
SECURITY DEPOSIT: $1,200.00 held per Minn. Stat. 504B.178.
The lease term begins January 1, 2025 and ends December 31, 2025.`

const noticeToQuitText = `NOTICE TO QUIT

You are hereby notified to quit and vacate the premises within 14 DAYS.
Amount Due: $2,400.00`

const writText = `WRIT OF RESTITUTION

TO THE SHERIFF OF HENNEPIN COUNTY:
You are directed to remove the defendant from the premises located at
123 Main Street and restore possession to the plaintiff.`

// ---------------------------------------------------------------------------
// Empty and garbage input
// ---------------------------------------------------------------------------

func TestRecognize_EmptyText(t *testing.T) {
	eng := newTestEngine(t)
	for _, text := range []string{"", "   ", "\n\n\t"} {
		cls := eng.Recognize(text, "summons.pdf")
		assert.Equal(t, docs.TypeUnknown, cls.Type)
		assert.Less(t, cls.Confidence, 0.3)
		assert.Equal(t, docs.CategoryOther, cls.Category)
		assert.NotEmpty(t, cls.Title)
	}
}

func TestRecognize_GarbageText(t *testing.T) {
	eng := newTestEngine(t)
	cls := eng.Recognize("zxqv mmbl 88321 @@!! ~~ kkpw", "scan001.pdf")
	assert.Equal(t, docs.TypeUnknown, cls.Type)
	assert.Less(t, cls.Confidence, 0.3)
	assert.Equal(t, docs.UrgencyNormal, cls.Urgency)
}

// The filename is a hint only: with no content signal it must never
// produce a classification on its own.
func TestRecognize_FilenameNeverDecidesAlone(t *testing.T) {
	eng := newTestEngine(t)
	cls := eng.Recognize("hello world, nothing legal here", "summons_eviction_lease.pdf")
	assert.Equal(t, docs.TypeUnknown, cls.Type)
	assert.Less(t, cls.Confidence, 0.3)
}

func TestRecognize_NeverPanics(t *testing.T) {
	eng := newTestEngine(t)
	inputs := []string{
		"",
		"\x00\x01\x02\xff",
		"13/45/9999 is not a date",
		strings.Repeat("A", 100000),
		strings.Repeat("quit ", 5000),
		"🏠🔑📄 незаконное выселение 立ち退き",
		"$$$$ $1,2,3 ////",
		"NOTICE TO QUIT\x00WRIT",
	}
	for _, text := range inputs {
		assert.NotPanics(t, func() {
			eng.Recognize(text, "weird..name..pdf")
		})
		assert.NotPanics(t, func() {
			eng.RecognizeWithAssist(text, "", &docs.AssistSignal{
				DocType:    "LEASE",
				Confidence: math.NaN(),
			})
		})
	}
}

// ---------------------------------------------------------------------------
// Core scenarios
// ---------------------------------------------------------------------------

func TestRecognize_LeaseFullSignal(t *testing.T) {
	eng := newTestEngine(t)
	cls := eng.Recognize(leaseText, "lease.pdf")

	assert.Equal(t, docs.TypeLease, cls.Type)
	assert.Equal(t, docs.CategoryLandlord, cls.Category)
	assert.Greater(t, cls.Confidence, 0.7)
	assert.Equal(t, "RESIDENTIAL LEASE AGREEMENT", cls.Title)
	assert.Equal(t, docs.UrgencyNormal, cls.Urgency)
	assert.Contains(t, cls.KeyTerms, "residential lease")
	assert.Contains(t, cls.ReasoningChain, `keyword "residential lease" matched (+0.50)`)
}

func TestRecognize_Summons(t *testing.T) {
	eng := newTestEngine(t)
	cls := eng.Recognize(summonsText, "court_papers.pdf")

	assert.Equal(t, docs.TypeSummons, cls.Type)
	assert.Equal(t, docs.CategoryCourt, cls.Category)
	assert.Greater(t, cls.Confidence, 0.7)
	assert.Equal(t, "SUMMONS", cls.Title)
	assert.Equal(t, docs.UrgencyHigh, cls.Urgency)
	assert.Contains(t, cls.ReasoningChain, `contextual "summons near answer and day count" matched (+0.20)`)
}

func TestRecognize_WritIsCritical(t *testing.T) {
	eng := newTestEngine(t)
	cls := eng.Recognize(writText, "")

	assert.Equal(t, docs.TypeWrit, cls.Type)
	assert.Equal(t, docs.CategoryCourt, cls.Category)
	assert.Equal(t, docs.UrgencyCritical, cls.Urgency)
	assert.Equal(t, "WRIT OF RESTITUTION", cls.Title)
}

func TestRecognize_NoticeToQuit(t *testing.T) {
	eng := newTestEngine(t)
	cls := eng.Recognize(noticeToQuitText, "notice.pdf")

	assert.Contains(t, []docs.DocumentType{docs.TypeNoticeToQuit, docs.TypeEvictionNotice}, cls.Type)
	assert.Equal(t, docs.CategoryLandlord, cls.Category)
	assert.Equal(t, docs.UrgencyHigh, cls.Urgency)
	assert.Contains(t, cls.ReasoningChain, `keyword "notice to quit" matched (+0.40)`)
}

func TestRecognize_ReceiptWithoutHeaderUsesDisplayName(t *testing.T) {
	eng := newTestEngine(t)
	text := "received from: john tenant, payment received for april rent $1,200.00\n" +
		"amount paid: $1,200.00 by check\n" +
		"payment method: personal check"
	cls := eng.Recognize(text, "")

	assert.Equal(t, docs.TypeReceipt, cls.Type)
	assert.Equal(t, docs.CategoryFinancial, cls.Category)
	assert.Equal(t, "Rent Receipt", cls.Title)
}

func TestRecognize_StatuteReferencesSurfaceAsKeyTerms(t *testing.T) {
	eng := newTestEngine(t)
	text := `EVICTION NOTICE

Your tenancy is terminated under Minn. Stat. § 504B.285 and
Minn. Stat. § 504B.135. You must vacate within fourteen (14) days.`
	cls := eng.Recognize(text, "")

	assert.Equal(t, docs.TypeEvictionNotice, cls.Type)
	require.NotEmpty(t, cls.KeyTerms)
	assert.Equal(t, "Minn. Stat. § 504B.285", cls.KeyTerms[0])
	assert.Contains(t, cls.KeyTerms, "Minn. Stat. § 504B.135")

	found := false
	for _, entry := range cls.ReasoningChain {
		if strings.HasPrefix(entry, `statute reference "Minn. Stat. § 504B.285"`) {
			found = true
		}
	}
	assert.True(t, found, "reasoning chain should record the statute layer: %v", cls.ReasoningChain)
}

// ---------------------------------------------------------------------------
// Reasoning chain and determinism
// ---------------------------------------------------------------------------

func TestRecognize_ReasoningChainRecordsNormalization(t *testing.T) {
	eng := newTestEngine(t)
	cls := eng.Recognize(leaseText, "")

	require.NotEmpty(t, cls.ReasoningChain)
	last := cls.ReasoningChain[len(cls.ReasoningChain)-1]
	assert.Contains(t, last, "normalized to")
	assert.Contains(t, last, "ceiling")
}

func TestRecognize_Deterministic(t *testing.T) {
	eng := newTestEngine(t)
	first := eng.Recognize(summonsText, "summons.pdf")
	second := eng.Recognize(summonsText, "summons.pdf")
	assert.Equal(t, first, second)
}

// ---------------------------------------------------------------------------
// Filename hints
// ---------------------------------------------------------------------------

func TestRecognize_FilenameHintBoostsExistingScore(t *testing.T) {
	eng := newTestEngine(t)
	text := "You are hereby summoned to serve a written answer."

	without := eng.Recognize(text, "")
	with := eng.Recognize(text, "summons_2025.pdf")

	assert.Greater(t, with.Confidence, without.Confidence)
	assert.Contains(t, with.ReasoningChain, "filename hint matched (+0.05)")
}

// ---------------------------------------------------------------------------
// Urgency escalation
// ---------------------------------------------------------------------------

func TestRecognize_UrgencyEscalatesForNearTermDate(t *testing.T) {
	eng := newTestEngine(t, WithClock(fixedClock(2025, time.January, 20)))
	text := `NOTICE OF HEARING

A remote hearing is scheduled for 01/28/2025 at 9:00 AM in courtroom 452.
You must appear before the housing court referee.`
	cls := eng.Recognize(text, "")

	assert.Equal(t, docs.TypeHearingNotice, cls.Type)
	assert.Equal(t, docs.UrgencyHigh, cls.Urgency, "medium default escalates one level")

	escalated := false
	for _, entry := range cls.ReasoningChain {
		if strings.Contains(entry, "urgency escalated") {
			escalated = true
		}
	}
	assert.True(t, escalated)
}

func TestRecognize_NoEscalationForFarDate(t *testing.T) {
	eng := newTestEngine(t, WithClock(fixedClock(2025, time.January, 20)))
	text := `NOTICE OF HEARING

A remote hearing is scheduled for 06/15/2025 at 9:00 AM in courtroom 452.
You must appear before the housing court referee.`
	cls := eng.Recognize(text, "")

	assert.Equal(t, docs.TypeHearingNotice, cls.Type)
	assert.Equal(t, docs.UrgencyMedium, cls.Urgency)
}

func TestRecognize_InvalidDateNeverEscalates(t *testing.T) {
	eng := newTestEngine(t, WithClock(fixedClock(2025, time.January, 20)))
	text := `NOTICE OF HEARING

A remote hearing is scheduled for 13/45/9999 in courtroom 452.
You must appear before the housing court referee.`

	var cls docs.Classification
	assert.NotPanics(t, func() { cls = eng.Recognize(text, "") })
	assert.Equal(t, docs.UrgencyMedium, cls.Urgency)
}

// ---------------------------------------------------------------------------
// Tie-breaking
// ---------------------------------------------------------------------------

func TestPickWinner_CategoryPriority(t *testing.T) {
	dt, score := pickWinner(map[docs.DocumentType]float64{
		docs.TypeLease:   0.5,
		docs.TypeSummons: 0.5,
	})
	assert.Equal(t, docs.TypeSummons, dt, "court outranks landlord on exact tie")
	assert.Equal(t, 0.5, score)
}

func TestPickWinner_IntraCategoryOrder(t *testing.T) {
	dt, _ := pickWinner(map[docs.DocumentType]float64{
		docs.TypeNoticeToQuit:   0.4,
		docs.TypeEvictionNotice: 0.4,
	})
	assert.Equal(t, docs.TypeEvictionNotice, dt)
}

func TestPickWinner_EmptyScores(t *testing.T) {
	dt, score := pickWinner(nil)
	assert.Equal(t, docs.TypeUnknown, dt)
	assert.Zero(t, score)
}

// ---------------------------------------------------------------------------
// Assist blending
// ---------------------------------------------------------------------------

func TestRecognizeWithAssist_NilSignalIdentical(t *testing.T) {
	eng := newTestEngine(t)
	plain := eng.Recognize(leaseText, "lease.pdf")
	assisted := eng.RecognizeWithAssist(leaseText, "lease.pdf", nil)
	assert.Equal(t, plain, assisted)
}

func TestRecognizeWithAssist_LiftsWeakSignal(t *testing.T) {
	eng := newTestEngine(t)
	text := "the tenant shall maintain the premises in good condition"

	plain := eng.Recognize(text, "")
	assert.Equal(t, docs.TypeUnknown, plain.Type)
	assert.Less(t, plain.Confidence, 0.3)

	assisted := eng.RecognizeWithAssist(text, "", &docs.AssistSignal{
		DocType:    "LEASE",
		Confidence: 0.9,
		KeyTerms:   []string{"habitability"},
	})
	assert.Equal(t, docs.TypeLease, assisted.Type)
	assert.Greater(t, assisted.Confidence, plain.Confidence)
	assert.Contains(t, assisted.KeyTerms, "habitability")

	found := false
	for _, entry := range assisted.ReasoningChain {
		if strings.HasPrefix(entry, `assist signal "LEASE" applied`) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRecognizeWithAssist_UnknownTypeIgnored(t *testing.T) {
	eng := newTestEngine(t)
	plain := eng.Recognize(noticeToQuitText, "")
	assisted := eng.RecognizeWithAssist(noticeToQuitText, "", &docs.AssistSignal{
		DocType:    "INVOICE",
		Confidence: 0.99,
	})
	assert.Equal(t, plain.Type, assisted.Type)
	assert.Equal(t, plain.Confidence, assisted.Confidence)
}

// ---------------------------------------------------------------------------
// Configuration guards
// ---------------------------------------------------------------------------

func TestNewEngine_ZeroConfigFallsBackToDefaults(t *testing.T) {
	eng := NewEngine(Config{}, nil)
	cls := eng.Recognize(leaseText, "")
	assert.Equal(t, docs.TypeLease, cls.Type)
	assert.Greater(t, cls.Confidence, 0.7)
}
