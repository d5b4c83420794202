// Package content holds the educational material the application is built
// around: CRPS subtype descriptions, the treatment catalog, population
// statistics, and the FAQ, patient profile, insight and reference lists the
// AI personas draw on.  The lists are shipped as embedded CSV files.
package content

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"

	"carepath/pkg"
)

//go:embed data/*.csv
var dataFS embed.FS

// TypeInfo describes one CRPS subtype.
type TypeInfo struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Symptoms    []string `json:"symptoms"`
	Keywords    []string `json:"keywords"`
}

// Stat is one line of the population statistics panel.
type Stat struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Profile is a representative patient description.
type Profile struct {
	ID          int      `json:"id"`
	Description string   `json:"description"`
	Symptoms    []string `json:"symptoms"`
}

// InsightNeed pairs an observed patient situation with the help it calls for.
type InsightNeed struct {
	ID       int    `json:"id"`
	Category string `json:"category"`
	Insight  string `json:"insight"`
	Need     string `json:"need"`
}

type FAQItem struct {
	Q string `json:"q"`
	A string `json:"a"`
}

type FAQCategory struct {
	Category string    `json:"category"`
	Items    []FAQItem `json:"items"`
}

// Catalog bundles every piece of static content.
type Catalog struct {
	Profiles     []Profile
	InsightNeeds []InsightNeed
	RAGURLs      []string
	FAQ          []FAQCategory
}

// SummaryFAQCategories are the FAQ categories shown on the guide overview.
var SummaryFAQCategories = []string{"통증 관리", "재활 운동"}

// CustomInstructions are appended to grounded prompts.
const CustomInstructions = `- 모든 답변은 CRPS 환자 중심으로 답변해야 합니다. 그 정보는 CRPS 프로파일과 인사이트, 참고 URL 목록을 기반으로 해야 합니다.
- 긍정적이고 희망적인 어조를 유지하되, 현실적인 기대를 제공해야 합니다.
- 치료 결정은 환자와 의료진의 공유의사결정임을 항상 명시해야 합니다.`

var TypeInfos = map[pkg.CRPSType]TypeInfo{
	pkg.CRPSType1: {
		Title:       "제1형: 반사성 교감신경 위축증 (RSD)",
		Description: "명확한 신경 손상이 관찰되지 않는 유형입니다. 교감신경계의 이상 반응이 주된 원인으로 추정됩니다.",
		Symptoms:    []string{"혈관 운동 불안정(피부 색/온도 변화)", "땀 분비 이상(발한/무한)", "부종(붓기) 및 피부 위축", "스치기만 해도 아픈 통각 과민"},
		Keywords:    []string{"교감신경 차단술", "비스포스포네이트", "물리치료 및 감각 재활", "스테로이드 요법"},
	},
	pkg.CRPSType2: {
		Title:       "제2형: 작열통 (Causalgia)",
		Description: "외상이나 수술 등으로 인한 명확한 말초 신경 손상이 동반된 유형입니다.",
		Symptoms:    []string{"손상된 신경 경로를 따라 퍼지는 작열통(불타는 통증)", "이질통(Allodynia)", "감각 저하 또는 과민", "손톱/털 성장 변화"},
		Keywords:    []string{"신경 차단술", "척수 자극술 (SCS)", "약물 치료 (가바펜틴/프레가발린)", "말초신경 감압/박리술"},
	},
	pkg.CRPSTypeUnknown: {
		Title:       "유형 미상 (상세 불명)",
		Description: "아직 정확한 유형 진단을 받지 않았거나 모르는 상태입니다.",
		Symptoms:    []string{"지속적인 만성 통증", "감각 이상", "운동 범위 제한", "피부 변화"},
		Keywords:    []string{"페인 스크램블러 (Pain Scrambler)", "물리치료 및 감각 재활", "정확한 진단 필요", "약물 치료 (가바펜틴/프레가발린)"},
	},
}

// TypeInfoFor returns the description for t, falling back to UNKNOWN.
func TypeInfoFor(t pkg.CRPSType) TypeInfo {
	return TypeInfos[t.Normalize()]
}

var StandardStats = []Stat{
	{Label: "평균 투병 기간", Value: "6.6년"},
	{Label: "첫 진단 평균 나이", Value: "35세"},
	{Label: "평균 통증 점수", Value: "7점 (VAS)"},
	{Label: "주된 발병 원인", Value: "교통사고"},
	{Label: "주된 통증 부위", Value: "발 (하지)"},
	{Label: "주된 통증 유형", Value: "통각과민, 전기 통증, 보행 시 악화"},
	{Label: "주요 신체 증상", Value: "부종 (붓기)"},
	{Label: "주요 심리 증상", Value: "우울감, PTSD, 수면 장애"},
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog parsed from the embedded CSV files.  Parsing
// happens once; a malformed file is a build defect and panics.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load()
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultCatalog
}

// Load parses the embedded CSV files into a Catalog.
func Load() (*Catalog, error) {
	cat := &Catalog{}

	rows, err := readCSV("data/crps_profiles.csv")
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		id, _ := strconv.Atoi(r["id"])
		cat.Profiles = append(cat.Profiles, Profile{
			ID:          id,
			Description: r["description"],
			Symptoms:    splitList(r["symptoms"]),
		})
	}

	rows, err = readCSV("data/crps_insight_needs.csv")
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		id, _ := strconv.Atoi(r["id"])
		cat.InsightNeeds = append(cat.InsightNeeds, InsightNeed{
			ID:       id,
			Category: r["category"],
			Insight:  r["insight"],
			Need:     r["need"],
		})
	}

	rows, err = readCSV("data/rag_url_list.csv")
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		cat.RAGURLs = append(cat.RAGURLs, r["url"])
	}

	rows, err = readCSV("data/faq_list.csv")
	if err != nil {
		return nil, err
	}
	index := map[string]int{}
	for _, r := range rows {
		i, ok := index[r["category"]]
		if !ok {
			i = len(cat.FAQ)
			index[r["category"]] = i
			cat.FAQ = append(cat.FAQ, FAQCategory{Category: r["category"]})
		}
		cat.FAQ[i].Items = append(cat.FAQ[i].Items, FAQItem{Q: r["q"], A: r["a"]})
	}

	return cat, nil
}

// readCSV returns the rows of an embedded CSV file keyed by header name.
func readCSV(name string) ([]map[string]string, error) {
	f, err := dataFS.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var out []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		row := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(rec) {
				row[key] = strings.TrimSpace(rec[i])
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Representative returns the first profile and insight, the pair every
// persona prompt is anchored on.
func (c *Catalog) Representative() (Profile, InsightNeed) {
	var p Profile
	var n InsightNeed
	if len(c.Profiles) > 0 {
		p = c.Profiles[0]
	}
	if len(c.InsightNeeds) > 0 {
		n = c.InsightNeeds[0]
	}
	return p, n
}

// LookupFAQ finds a stored answer whose question matches exactly after
// trimming surrounding whitespace.
func (c *Catalog) LookupFAQ(question string) (string, bool) {
	q := strings.TrimSpace(question)
	for _, cat := range c.FAQ {
		for _, item := range cat.Items {
			if strings.TrimSpace(item.Q) == q {
				return item.A, true
			}
		}
	}
	return "", false
}

// SummaryFAQ returns the categories listed in SummaryFAQCategories.
func (c *Catalog) SummaryFAQ() []FAQCategory {
	return lo.Filter(c.FAQ, func(cat FAQCategory, _ int) bool {
		return lo.Contains(SummaryFAQCategories, cat.Category)
	})
}

// FindStat finds a statistic whose label contains labelPart.
func FindStat(labelPart string) (Stat, bool) {
	for _, s := range StandardStats {
		if strings.Contains(s.Label, labelPart) {
			return s, true
		}
	}
	return Stat{}, false
}
