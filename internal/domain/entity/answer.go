package entity

import (
	"errors"
	"fmt"
	"strings"
)

type SourceQuality struct {
	DomainType         string  `json:"domain_type" enum:"academic,government,news,commercial,other"`
	CredibilityScore   float64 `json:"credibility_score" description:"0-1 credibility rating"`
	PeerReviewed       bool    `json:"peer_reviewed"`
	PublicationDate    string  `json:"publication_date"`
	AuthorCredentials  string  `json:"author_credentials"`
	CitationCount      int     `json:"citation_count"`
	MethodologyQuality string  `json:"methodology_quality"`
}

type ResearchGap struct {
	GapType           string `json:"gap_type" enum:"empirical,theoretical,methodological,practical"`
	Description       string `json:"description"`
	Importance        string `json:"importance" enum:"high,medium,low"`
	SuggestedApproach string `json:"suggested_approach"`
}

type CitationNetwork struct {
	KeyAuthors          []string `json:"key_authors"`
	SeminalPapers       []string `json:"seminal_papers"`
	RecentDevelopments  []string `json:"recent_developments"`
	ConflictingFindings []string `json:"conflicting_findings"`
}

type MethodologicalFramework struct {
	ResearchParadigm      string   `json:"research_paradigm" enum:"quantitative,qualitative,mixed_methods,theoretical"`
	DataCollectionMethods []string `json:"data_collection_methods"`
	AnalysisTechniques    []string `json:"analysis_techniques"`
	Limitations           []string `json:"limitations"`
	ValidityConcerns      []string `json:"validity_concerns"`
}

// SubtopicAnswer is produced once per completed subtopic and never modified.
type SubtopicAnswer struct {
	Subtopic        string                  `json:"subtopic"`
	Answer          string                  `json:"subtopic_answer"`
	Methodology     MethodologicalFramework `json:"methodology"`
	ResearchGaps    []ResearchGap           `json:"research_gaps"`
	CitationNetwork CitationNetwork         `json:"citation_network"`
	SourceQuality   []SourceQuality         `json:"source_quality_assessment"`
	KeyFindings     []string                `json:"key_findings"`
	Contradictions  []string                `json:"contradictions"`
	References      []string                `json:"references"`
}

func (a SubtopicAnswer) Validate() error {
	var errs []error
	if strings.TrimSpace(a.Answer) == "" {
		errs = append(errs, errors.New("subtopic_answer is empty"))
	}
	if err := oneOf("research_paradigm", a.Methodology.ResearchParadigm,
		"quantitative", "qualitative", "mixed_methods", "theoretical"); err != nil {
		errs = append(errs, err)
	}
	for i, gap := range a.ResearchGaps {
		if err := oneOf(fmt.Sprintf("research_gaps[%d].gap_type", i), gap.GapType,
			"empirical", "theoretical", "methodological", "practical"); err != nil {
			errs = append(errs, err)
		}
		if err := oneOf(fmt.Sprintf("research_gaps[%d].importance", i), gap.Importance,
			"high", "medium", "low"); err != nil {
			errs = append(errs, err)
		}
	}
	for i, sq := range a.SourceQuality {
		if err := oneOf(fmt.Sprintf("source_quality_assessment[%d].domain_type", i), sq.DomainType,
			"academic", "government", "news", "commercial", "other"); err != nil {
			errs = append(errs, err)
		}
		if sq.CredibilityScore < 0 || sq.CredibilityScore > 1 {
			errs = append(errs, fmt.Errorf("source_quality_assessment[%d].credibility_score %.2f out of [0,1]", i, sq.CredibilityScore))
		}
	}
	return errors.Join(errs...)
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: %q not in %v", field, value, allowed)
}
