package store

import (
	"context"
	"fmt"
)

// Fact is one row of case facts: a party with its role, plus the dates,
// amounts and cited sections attached to the case. Columns that have no
// value are empty strings.
type Fact struct {
	Person      string `json:"person"`
	Role        string `json:"role"`
	CaseID      string `json:"caseId"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Section     string `json:"section"`
	SectionDesc string `json:"section_desc"`
}

// factsSQL walks out from each CourtCase. Every optional hop is a LEFT JOIN
// so a case with no parties still yields its dates and amounts.
const factsSQL = `
SELECT
    COALESCE(p.key, ''),
    COALESCE(json_extract(r.props, '$.value'), json_extract(p.props, '$.role'), ''),
    c.key,
    COALESCE(d.key, ''),
    COALESCE(m.key, ''),
    COALESCE(s.key, ''),
    COALESCE(sd.key, '')
FROM nodes c
LEFT JOIN edges pe ON pe.dst_id = c.id AND pe.rel_type = 'PARTY'
LEFT JOIN nodes p ON p.id = pe.src_id AND p.label = 'Person'
LEFT JOIN edges re ON re.src_id = p.id AND re.rel_type = 'HAS_ROLE'
LEFT JOIN nodes r ON r.id = re.dst_id AND r.label = 'LegalRole'
LEFT JOIN edges de ON de.src_id = c.id AND de.rel_type = 'OCCURRED_ON'
LEFT JOIN nodes d ON d.id = de.dst_id AND d.label = 'Date'
LEFT JOIN edges me ON me.src_id = c.id AND me.rel_type = 'HAS_AMOUNT'
LEFT JOIN nodes m ON m.id = me.dst_id AND m.label = 'MoneyAmount'
LEFT JOIN edges se ON se.src_id = c.id AND se.rel_type = 'CITES'
LEFT JOIN nodes s ON s.id = se.dst_id AND s.label = 'Section'
LEFT JOIN edges sde ON sde.src_id = s.id AND sde.rel_type = 'HAS_DESC'
LEFT JOIN nodes sd ON sd.id = sde.dst_id
WHERE c.label = 'CourtCase' AND (? = '' OR c.key = ?)
ORDER BY c.id, p.id, d.id, m.id, s.id, sd.id
`

// QueryFacts returns up to limit distinct fact rows for caseID, or for all
// cases when caseID is empty. limit <= 0 means no limit.
func (s *Store) QueryFacts(ctx context.Context, caseID string, limit int) ([]Fact, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, factsSQL, caseID, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []Fact
	seen := make(map[Fact]bool)
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.Person, &f.Role, &f.CaseID, &f.Date, &f.Amount, &f.Section, &f.SectionDesc); err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		facts = append(facts, f)
		if limit > 0 && len(facts) >= limit {
			break
		}
	}
	return facts, rows.Err()
}

// RecentCaseIDs returns up to limit case ids ordered by their most recent
// chunk write, oldest first. Re-ingesting a case moves it to the end.
func (s *Store) RecentCaseIDs(ctx context.Context, limit int) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT case_id FROM (
			SELECT case_id, MAX(seq) AS last_seq
			FROM doc_chunks
			GROUP BY case_id
			ORDER BY last_seq DESC
			LIMIT ?
		)
		ORDER BY last_seq
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent cases: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
