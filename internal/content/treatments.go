package content

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"carepath/pkg"
)

// TreatmentsByType lists the catalog grouped by the subtype it is curated for.
var TreatmentsByType = map[pkg.CRPSType][]pkg.TreatmentOption{
	pkg.CRPSType1: {
		{
			ID:               "t1",
			Title:            "교감신경 차단술",
			Category:         pkg.CategoryProcedure,
			Pros:             []string{"통증 완화 효과가 비교적 빠름", "진단적 가치도 있음"},
			Cons:             []string{"효과 지속 기간이 짧을 수 있음", "반복 시술이 필요함"},
			EvidenceLevel:    pkg.EvidenceModerate,
			ReferenceURL:     "https://www.ncbi.nlm.nih.gov/books/NBK557405/",
			RecommendedTypes: []pkg.CRPSType{pkg.CRPSType1},
		},
		{
			ID:               "t2",
			Title:            "비스포스포네이트",
			Category:         pkg.CategoryMedication,
			Pros:             []string{"초기 CRPS에서 통증 감소 근거", "골 소실 예방"},
			Cons:             []string{"위장 장애", "정맥 투여 시 급성기 반응"},
			EvidenceLevel:    pkg.EvidenceHigh,
			RecommendedTypes: []pkg.CRPSType{pkg.CRPSType1},
		},
		{
			ID:               "t3",
			Title:            "스테로이드 요법",
			Category:         pkg.CategoryMedication,
			Pros:             []string{"급성기 염증과 부종 감소"},
			Cons:             []string{"장기 사용 시 부작용", "만성기 효과 제한적"},
			EvidenceLevel:    pkg.EvidenceLow,
			RecommendedTypes: []pkg.CRPSType{pkg.CRPSType1},
		},
	},
	pkg.CRPSType2: {
		{
			ID:               "t2a",
			Title:            "척수 자극술 (SCS)",
			Category:         pkg.CategoryProcedure,
			Pros:             []string{"난치성 통증에서 장기 효과 보고", "시험 자극 후 결정 가능"},
			Cons:             []string{"수술적 삽입 필요", "기기 관리 부담"},
			EvidenceLevel:    pkg.EvidenceModerate,
			RecommendedTypes: []pkg.CRPSType{pkg.CRPSType2, pkg.CRPSTypeUnknown},
		},
		{
			ID:               "t2b",
			Title:            "약물 치료 (가바펜틴/프레가발린)",
			Category:         pkg.CategoryMedication,
			Pros:             []string{"신경병성 통증 완화", "복용이 간편함"},
			Cons:             []string{"어지럼증·졸림", "용량 조절 기간 필요"},
			EvidenceLevel:    pkg.EvidenceModerate,
			RecommendedTypes: []pkg.CRPSType{pkg.CRPSType2, pkg.CRPSTypeUnknown},
		},
		{
			ID:               "t2c",
			Title:            "말초신경 감압/박리술",
			Category:         pkg.CategoryProcedure,
			Pros:             []string{"신경 압박 원인 제거"},
			Cons:             []string{"수술 위험", "적응증이 제한적"},
			EvidenceLevel:    pkg.EvidenceLow,
			RecommendedTypes: []pkg.CRPSType{pkg.CRPSType2},
		},
	},
	pkg.CRPSTypeUnknown: {
		{
			ID:               "u1",
			Title:            "물리치료 및 감각 재활",
			Category:         pkg.CategoryRehabilitation,
			Pros:             []string{"기능 회복", "부작용이 적음"},
			Cons:             []string{"초기 통증 증가 가능", "꾸준한 참여 필요"},
			EvidenceLevel:    pkg.EvidenceHigh,
			RecommendedTypes: []pkg.CRPSType{pkg.CRPSType1, pkg.CRPSType2, pkg.CRPSTypeUnknown},
		},
		{
			ID:               "u2",
			Title:            "페인 스크램블러 (Pain Scrambler)",
			Category:         pkg.CategoryProcedure,
			Pros:             []string{"비침습적", "약물 부담 없음"},
			Cons:             []string{"효과 개인차가 큼", "여러 회차 필요"},
			EvidenceLevel:    pkg.EvidenceLow,
			RecommendedTypes: []pkg.CRPSType{pkg.CRPSTypeUnknown},
		},
		{
			ID:               "u3",
			Title:            "인지행동치료 (CBT)",
			Category:         pkg.CategoryPsychotherapy,
			Pros:             []string{"통증 대처 능력 향상", "우울·불안 완화"},
			Cons:             []string{"효과가 나타나기까지 시간 필요"},
			EvidenceLevel:    pkg.EvidenceModerate,
			RecommendedTypes: []pkg.CRPSType{pkg.CRPSType1, pkg.CRPSType2, pkg.CRPSTypeUnknown},
		},
	},
}

var typeOrder = []pkg.CRPSType{pkg.CRPSType1, pkg.CRPSType2, pkg.CRPSTypeUnknown}

// Treatments returns the flattened catalog in subtype order.
func Treatments() []pkg.TreatmentOption {
	var out []pkg.TreatmentOption
	for _, t := range typeOrder {
		out = append(out, TreatmentsByType[t]...)
	}
	return out
}

// FindTreatment looks up a catalog entry by id.
func FindTreatment(id string) (pkg.TreatmentOption, bool) {
	return lo.Find(Treatments(), func(t pkg.TreatmentOption) bool {
		return t.ID == id
	})
}

// SortedFor orders the catalog for a patient of the given subtype: options
// recommended for the subtype first, then High-evidence options.  Ties keep
// catalog order.
func SortedFor(t pkg.CRPSType) []pkg.TreatmentOption {
	t = t.Normalize()
	out := Treatments()
	sort.SliceStable(out, func(i, j int) bool {
		ri := lo.Contains(out[i].RecommendedTypes, t)
		rj := lo.Contains(out[j].RecommendedTypes, t)
		if ri != rj {
			return ri
		}
		hi := out[i].EvidenceLevel == pkg.EvidenceHigh
		hj := out[j].EvidenceLevel == pkg.EvidenceHigh
		return hi && !hj
	})
	return out
}

// ReasonOptions lists the reasons a patient can pick when reacting to a
// treatment.  A nil treatment means a custom option typed by the patient.
func ReasonOptions(kind pkg.PreferenceType, treatment *pkg.TreatmentOption) []string {
	if treatment == nil {
		switch kind {
		case pkg.PreferenceLike:
			return []string{"평소 관심 있었음", "지인이 추천함", "인터넷에서 정보를 봄", "의사와 상의하고 싶음"}
		case pkg.PreferenceWorry:
			return []string{"효과가 불확실함", "비용이 걱정됨", "부작용 정보가 부족함"}
		default:
			return []string{"나에게 맞지 않을 것 같음"}
		}
	}
	switch kind {
	case pkg.PreferenceLike:
		return append(append([]string{}, treatment.Pros...), "높은 증거 수준", "긍정적인 환자 후기")
	case pkg.PreferenceDislike:
		return append(append([]string{}, treatment.Cons...), "너무 침습적임(수술 등)", "치료 빈도가 부담됨")
	case pkg.PreferenceWorry:
		return []string{"부작용 걱정", "비용/보험 문제", "장기적인 위험", "시술 중 통증"}
	}
	return nil
}

// TreatmentTitle resolves the display title of a preference: the custom
// name for custom options, the catalog title otherwise, and the raw id when
// the catalog does not know it.
func TreatmentTitle(p pkg.Preference) string {
	if p.IsCustom() {
		return *p.CustomName
	}
	if strings.HasPrefix(p.TreatmentID, "custom") {
		return "직접 입력"
	}
	if t, ok := FindTreatment(p.TreatmentID); ok {
		return t.Title
	}
	return p.TreatmentID
}
