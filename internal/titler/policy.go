package titler

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed title_policy.yaml
var bundledPolicy []byte

// Policy is the process-wide title-generation configuration. It is
// loaded once at startup and read-only afterwards; generation quality
// depends entirely on it, so a missing or malformed document is fatal
// rather than a degraded mode.
type Policy struct {
	Version        int
	Lang           string
	RefusalPhrase  string
	Guardrails     []string
	PriorityRules  PriorityRules
	SpeechBiasTags []string
	Words          WordLists
	Fillers        []string
	SpecialCases   []SpecialCase
	FewShot        []FewShotExample
}

type PriorityRules struct {
	PreferMusicAttribution bool `yaml:"preferMusicAttribution"`
	PreferDialogTopic      bool `yaml:"preferDialogTopic"`
}

// WordLists holds the localized vocabulary the scorer matches against.
// Kept as data so locale changes do not touch scoring logic.
type WordLists struct {
	Discourse []string `yaml:"discourse"`
	Music     []string `yaml:"music"`
	Rain      []string `yaml:"rain"`
	Wave      []string `yaml:"wave"`
	Siren     []string `yaml:"siren"`
	Speech    []string `yaml:"speech"`
	Water     []string `yaml:"water"`
	Walking   []string `yaml:"walking"`
}

// FewShotExample steers generation style: a context document rendered
// from Input fields paired with the expected title.
type FewShotExample struct {
	Input  map[string]string `yaml:"input"`
	Output string            `yaml:"output"`
}

// SpecialCase is one rule kind from the policy's specialCases list.
// Each kind carries only the fields it uses, so a switch over the
// concrete types is exhaustiveness-checkable.
type SpecialCase interface {
	specialCase()
}

// MusicRecognizedCase titles the recording after a matched background
// track via its template ({artist}, {title} placeholders).
type MusicRecognizedCase struct {
	Template string
}

// RainDominantCase supplies a fixed template when rain dominates the
// tag ratios.
type RainDominantCase struct {
	Template string
}

func (MusicRecognizedCase) specialCase() {}
func (RainDominantCase) specialCase() {}

type policyDoc struct {
	Version        int              `yaml:"policyVersion"`
	Lang           string           `yaml:"lang"`
	RefusalPhrase  string           `yaml:"refusalPhrase"`
	Guardrails     []string         `yaml:"guardrails"`
	PriorityRules  PriorityRules    `yaml:"priorityRules"`
	SpeechBiasTags []string         `yaml:"speechBiasTags"`
	Words          WordLists        `yaml:"words"`
	Fillers        []string         `yaml:"fillers"`
	SpecialCases   []specialCaseDoc `yaml:"specialCases"`
	FewShot        []FewShotExample `yaml:"fewShot"`
}

type specialCaseDoc struct {
	When     string `yaml:"when"`
	Template string `yaml:"template"`
}

// LoadPolicy reads the policy document from path, or the bundled copy
// when path is empty. Any load or validation failure is returned as an
// error the caller must treat as fatal.
func LoadPolicy(path string) (*Policy, error) {
	data := bundledPolicy
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read title policy: %w", err)
		}
		data = b
	}
	var doc policyDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse title policy: %w", err)
	}
	p := &Policy{
		Version:        doc.Version,
		Lang:           doc.Lang,
		RefusalPhrase:  doc.RefusalPhrase,
		Guardrails:     doc.Guardrails,
		PriorityRules:  doc.PriorityRules,
		SpeechBiasTags: doc.SpeechBiasTags,
		Words:          doc.Words,
		Fillers:        doc.Fillers,
		FewShot:        doc.FewShot,
	}
	for _, sc := range doc.SpecialCases {
		switch sc.When {
		case "music_recognized":
			p.SpecialCases = append(p.SpecialCases, MusicRecognizedCase{Template: sc.Template})
		case "rain_dominant":
			p.SpecialCases = append(p.SpecialCases, RainDominantCase{Template: sc.Template})
		default:
			return nil, fmt.Errorf("title policy: unknown special case %q", sc.When)
		}
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("title policy: %w", err)
	}
	return p, nil
}

func (p *Policy) validate() error {
	switch {
	case p.Version <= 0:
		return fmt.Errorf("missing policyVersion")
	case p.Lang == "":
		return fmt.Errorf("missing lang")
	case strings.TrimSpace(p.RefusalPhrase) == "":
		return fmt.Errorf("missing refusalPhrase")
	case len(p.Guardrails) == 0:
		return fmt.Errorf("no guardrails")
	case len(p.Words.Discourse) == 0 || len(p.Words.Speech) == 0 ||
		len(p.Words.Water) == 0 || len(p.Words.Walking) == 0 || len(p.Words.Music) == 0:
		return fmt.Errorf("incomplete word lists")
	}
	return nil
}
