package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// BiodataSteps is the number of form steps a submission must complete.
const BiodataSteps = 4

// PersonalSection is step 1 of the biodata form.
type PersonalSection struct {
	Gender           string `json:"gender" validate:"required,oneof=male female"`
	DateOfBirth      string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Height           string `json:"height" validate:"required"`
	Weight           string `json:"weight,omitempty"`
	Complexion       string `json:"complexion" validate:"required"`
	BloodGroup       string `json:"bloodGroup,omitempty"`
	MaritalStatus    string `json:"maritalStatus" validate:"required,oneof=never_married divorced widowed"`
	Nationality      string `json:"nationality" validate:"required"`
	PermanentAddress string `json:"permanentAddress" validate:"required"`
	PresentAddress   string `json:"presentAddress" validate:"required"`
}

// FamilySection is the family half of step 2. Siblings are collected from
// per-sibling keys such as brother_1_name.
type FamilySection struct {
	FatherName       string    `json:"fatherName" validate:"required"`
	FatherOccupation string    `json:"fatherOccupation" validate:"required"`
	MotherName       string    `json:"motherName" validate:"required"`
	MotherOccupation string    `json:"motherOccupation" validate:"required"`
	BrothersCount    int       `json:"brothersCount" validate:"min=0,max=20"`
	SistersCount     int       `json:"sistersCount" validate:"min=0,max=20"`
	FamilyStatus     string    `json:"familyStatus,omitempty"`
	Siblings         []Sibling `json:"siblings,omitempty"`
}

// Sibling is one brother or sister entry.
type Sibling struct {
	Relation      string `json:"relation"`
	Index         int    `json:"index"`
	Name          string `json:"name,omitempty"`
	Occupation    string `json:"occupation,omitempty"`
	MaritalStatus string `json:"maritalStatus,omitempty"`
}

// EducationSection is the education half of step 2.
type EducationSection struct {
	EducationMedium      string `json:"educationMedium" validate:"required"`
	HighestQualification string `json:"highestQualification" validate:"required"`
	Institution          string `json:"institution" validate:"required"`
	PassingYear          string `json:"passingYear,omitempty"`
}

// LifestyleSection is the first half of step 3.
type LifestyleSection struct {
	Occupation    string `json:"occupation" validate:"required"`
	MonthlyIncome string `json:"monthlyIncome,omitempty"`
	DailyRoutine  string `json:"dailyRoutine,omitempty"`
	Hobbies       string `json:"hobbies,omitempty"`
	AboutMe       string `json:"aboutMe" validate:"required,max=2000"`
}

// PartnerPreferenceSection is the second half of step 3.
type PartnerPreferenceSection struct {
	PartnerMinAge     int    `json:"partnerMinAge" validate:"required,min=18,max=80"`
	PartnerMaxAge     int    `json:"partnerMaxAge" validate:"required,gtefield=PartnerMinAge,max=80"`
	PartnerEducation  string `json:"partnerEducation,omitempty"`
	PartnerComplexion string `json:"partnerComplexion,omitempty"`
	PartnerLocation   string `json:"partnerLocation,omitempty"`
	PartnerQualities  string `json:"partnerQualities" validate:"required"`
}

// DeclarationSection is fixed at creation and never changed by later edits.
type DeclarationSection struct {
	GuardianKnowledge         bool `json:"guardianKnowledge" validate:"eq=true"`
	InformationTruthfulness   bool `json:"informationTruthfulness" validate:"eq=true"`
	FalseInformationAgreement bool `json:"falseInformationAgreement" validate:"eq=true"`
}

// ContactSection is the contact half of step 4.
type ContactSection struct {
	GuardianName         string `json:"guardianName" validate:"required"`
	GuardianRelationship string `json:"guardianRelationship" validate:"required"`
	GuardianPhone        string `json:"guardianPhone" validate:"required,min=6,max=20"`
	ContactEmail         string `json:"contactEmail,omitempty" validate:"omitempty,email"`
}

// BiodataForm is the typed view of a complete submission.
type BiodataForm struct {
	Personal          PersonalSection          `json:"personal"`
	Family            FamilySection            `json:"family"`
	Education         EducationSection         `json:"education"`
	Lifestyle         LifestyleSection         `json:"lifestyle"`
	PartnerPreference PartnerPreferenceSection `json:"partnerPreference"`
	Declaration       DeclarationSection       `json:"declaration"`
	Contact           ContactSection           `json:"contact"`
}

var sectionSteps = map[string]int{
	"personal":          1,
	"family":            2,
	"education":         2,
	"lifestyle":         3,
	"partnerPreference": 3,
	"declaration":       4,
	"contact":           4,
}

var fieldSteps = buildFieldSteps()

func buildFieldSteps() map[string]int {
	steps := map[string]int{}
	formType := reflect.TypeOf(BiodataForm{})
	for i := 0; i < formType.NumField(); i++ {
		section := formType.Field(i)
		step := sectionSteps[JSONName(section)]
		for j := 0; j < section.Type.NumField(); j++ {
			if name := JSONName(section.Type.Field(j)); name != "" {
				steps[name] = step
			}
		}
	}
	return steps
}

// JSONName returns the json key of a struct field, or "" when the field is not serialised.
func JSONName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

var siblingKey = regexp.MustCompile(`^(brother|sister)_(\d+)_(name|occupation|maritalStatus)$`)

// FieldStep returns the form step a draft field belongs to, or 0 when unknown.
func FieldStep(field string) int {
	if step, ok := fieldSteps[field]; ok {
		return step
	}
	if siblingKey.MatchString(field) {
		return sectionSteps["family"]
	}
	return 0
}

// FieldTypeError reports a draft value whose type does not fit its form field.
type FieldTypeError struct {
	Field    string
	Expected string
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("%s must be a %s", e.Field, e.Expected)
}

// ParseBiodataForm decodes flat draft data into a typed form. Every section reads its own
// keys from the same flat object.
func ParseBiodataForm(data json.RawMessage) (BiodataForm, []*FieldTypeError, error) {
	var form BiodataForm
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return form, nil, fmt.Errorf("decode draft data: %w", err)
	}

	var typeErrs []*FieldTypeError
	targets := []interface{}{&form.Personal, &form.Family, &form.Education, &form.Lifestyle, &form.PartnerPreference, &form.Declaration, &form.Contact}
	for _, target := range targets {
		if err := json.Unmarshal(data, target); err != nil {
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &typeErr) {
				return form, nil, fmt.Errorf("decode draft data: %w", err)
			}
			typeErrs = append(typeErrs, &FieldTypeError{Field: typeErr.Field, Expected: typeErr.Type.String()})
		}
	}
	form.Family.Siblings = collectSiblings(flat)
	return form, typeErrs, nil
}

func collectSiblings(flat map[string]json.RawMessage) []Sibling {
	byKey := map[string]*Sibling{}
	for key, raw := range flat {
		m := siblingKey.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		index, _ := strconv.Atoi(m[2])
		id := m[1] + "_" + m[2]
		sib, ok := byKey[id]
		if !ok {
			sib = &Sibling{Relation: m[1], Index: index}
			byKey[id] = sib
		}
		switch m[3] {
		case "name":
			sib.Name = value
		case "occupation":
			sib.Occupation = value
		case "maritalStatus":
			sib.MaritalStatus = value
		}
	}

	siblings := make([]Sibling, 0, len(byKey))
	for _, sib := range byKey {
		siblings = append(siblings, *sib)
	}
	sort.Slice(siblings, func(i, j int) bool {
		if siblings[i].Relation != siblings[j].Relation {
			return siblings[i].Relation < siblings[j].Relation
		}
		return siblings[i].Index < siblings[j].Index
	})
	return siblings
}

// MissingSiblings lists sibling name keys required by the declared counts but absent.
func (f FamilySection) MissingSiblings() []string {
	have := map[string]bool{}
	for _, sib := range f.Siblings {
		if strings.TrimSpace(sib.Name) != "" {
			have[fmt.Sprintf("%s_%d", sib.Relation, sib.Index)] = true
		}
	}
	var missing []string
	for relation, count := range map[string]int{"brother": f.BrothersCount, "sister": f.SistersCount} {
		for i := 1; i <= count; i++ {
			if !have[fmt.Sprintf("%s_%d", relation, i)] {
				missing = append(missing, fmt.Sprintf("%s_%d_name", relation, i))
			}
		}
	}
	sort.Strings(missing)
	return missing
}

// Sections encodes the form into the stored profile sections.
func (f BiodataForm) Sections() (ProfileSections, error) {
	out := ProfileSections{Gender: f.Personal.Gender}
	pairs := []struct {
		dst *json.RawMessage
		src interface{}
	}{
		{&out.Personal, f.Personal},
		{&out.Family, f.Family},
		{&out.Education, f.Education},
		{&out.Lifestyle, f.Lifestyle},
		{&out.PartnerPreference, f.PartnerPreference},
		{&out.Declaration, f.Declaration},
		{&out.Contact, f.Contact},
	}
	for _, p := range pairs {
		raw, err := json.Marshal(p.src)
		if err != nil {
			return out, fmt.Errorf("encode profile section: %w", err)
		}
		*p.dst = raw
	}
	return out, nil
}
