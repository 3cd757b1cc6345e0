package extract

// Node labels recognised by the graph. Anything outside this set is stored
// under LabelEntity.
const (
	LabelPerson             = "Person"
	LabelCourtCase          = "CourtCase"
	LabelLegalRole          = "LegalRole"
	LabelLegalTerm          = "LegalTerm"
	LabelEmploymentContract = "EmploymentContract"
	LabelMoneyAmount        = "MoneyAmount"
	LabelDate               = "Date"
	LabelAct                = "Act"
	LabelBook               = "Book"
	LabelTitle              = "Title"
	LabelChapter            = "Chapter"
	LabelPart               = "Part"
	LabelGroup              = "Group"
	LabelSection            = "Section"
	LabelSectionDesc        = "Section_desc"
	LabelParagraph          = "Paragraph"
	LabelInterestRate       = "InterestRate"
	LabelPenalty            = "Penalty"
	LabelTimePeriod         = "TimePeriod"
	LabelCause              = "Cause"
	LabelEntity             = "Entity"
)

// Relationship types.
const (
	RelHasRole      = "HAS_ROLE"
	RelParty        = "PARTY"
	RelClaims       = "CLAIMS"
	RelCites        = "CITES"
	RelEmployedBy   = "EMPLOYED_BY"
	RelHasAmount    = "HAS_AMOUNT"
	RelOccurredOn   = "OCCURRED_ON"
	RelBelongsTo    = "BELONGS_TO"
	RelHasDesc      = "HAS_DESC"
	RelSection      = "SECTION"
	RelHasParagraph = "HAS_PARAGRAPH"
	RelHasRate      = "HAS_RATE"
	RelHasPenalty   = "HAS_PENALTY"
	RelWithin       = "WITHIN"
	RelHasCause     = "HAS_CAUSE"
	RelRefersTo     = "REFERS_TO"
)

// Party names and the role values attached to them.
const (
	PartyPlaintiff = "โจทก์"
	PartyDefendant = "จำเลย"

	RolePlaintiff = "Plaintiff"
	RoleDefendant = "Defendant"
)

var knownLabels = map[string]bool{
	LabelPerson: true, LabelCourtCase: true, LabelLegalRole: true, LabelLegalTerm: true,
	LabelEmploymentContract: true, LabelMoneyAmount: true, LabelDate: true,
	LabelAct: true, LabelBook: true, LabelTitle: true, LabelChapter: true, LabelPart: true,
	LabelGroup: true, LabelSection: true, LabelSectionDesc: true, LabelParagraph: true,
	LabelInterestRate: true, LabelPenalty: true, LabelTimePeriod: true, LabelCause: true,
	LabelEntity: true,
}

// NormalizeLabel maps unknown or empty labels to LabelEntity.
func NormalizeLabel(label string) string {
	if knownLabels[label] {
		return label
	}
	return LabelEntity
}
