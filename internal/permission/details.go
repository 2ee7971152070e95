package permission

import (
	"encoding/json"
	"fmt"

	"mamacare.app/internal/auth"
	"mamacare.app/internal/validation"
)

// Details is the role-specific part of a request. Exactly one concrete type
// exists per elevated role: DoctorDetails, MidwifeDetails, ServiceProviderDetails.
type Details interface {
	Role() auth.Role
	Clone() Details
	validate(errs *validation.Errors)
	merge(patch Details)
}

// Common holds fields shared by every role.
type Common struct {
	Reason         string `json:"reason,omitempty"`
	AdditionalInfo string `json:"additionalInfo,omitempty"`
}

func (c *Common) validate(errs *validation.Errors) {
	errs.MaxLen("reason", c.Reason, 1000)
	errs.MaxLen("additionalInfo", c.AdditionalInfo, 2000)
}

func (c *Common) merge(p Common) {
	mergeString(&c.Reason, p.Reason)
	mergeString(&c.AdditionalInfo, p.AdditionalInfo)
}

// DoctorDetails is submitted with role doctor.
type DoctorDetails struct {
	Specialization string   `json:"specialization"`
	LicenseNumber  string   `json:"licenseNumber,omitempty"`
	Hospital       string   `json:"hospital,omitempty"`
	Experience     *int     `json:"experience,omitempty"`
	Education      []string `json:"education,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	Common
}

func (*DoctorDetails) Role() auth.Role { return auth.RoleDoctor }

func (d *DoctorDetails) Clone() Details {
	out := *d
	out.Experience = cloneInt(d.Experience)
	out.Education = cloneStrings(d.Education)
	out.Certifications = cloneStrings(d.Certifications)
	return &out
}

func (d *DoctorDetails) validate(errs *validation.Errors) {
	errs.Required("specialization", d.Specialization)
	validateExperience(errs, d.Experience)
	d.Common.validate(errs)
}

func (d *DoctorDetails) merge(patch Details) {
	p, ok := patch.(*DoctorDetails)
	if !ok {
		return
	}
	mergeString(&d.Specialization, p.Specialization)
	mergeString(&d.LicenseNumber, p.LicenseNumber)
	mergeString(&d.Hospital, p.Hospital)
	mergeInt(&d.Experience, p.Experience)
	mergeStrings(&d.Education, p.Education)
	mergeStrings(&d.Certifications, p.Certifications)
	d.Common.merge(p.Common)
}

// MidwifeDetails is submitted with role midwife.
type MidwifeDetails struct {
	CertificationNumber string   `json:"certificationNumber"`
	Clinic              string   `json:"clinic,omitempty"`
	Experience          *int     `json:"experience,omitempty"`
	Services            []string `json:"services,omitempty"`
	Certifications      []string `json:"certifications,omitempty"`
	Common
}

func (*MidwifeDetails) Role() auth.Role { return auth.RoleMidwife }

func (d *MidwifeDetails) Clone() Details {
	out := *d
	out.Experience = cloneInt(d.Experience)
	out.Services = cloneStrings(d.Services)
	out.Certifications = cloneStrings(d.Certifications)
	return &out
}

func (d *MidwifeDetails) validate(errs *validation.Errors) {
	errs.Required("certificationNumber", d.CertificationNumber)
	validateExperience(errs, d.Experience)
	d.Common.validate(errs)
}

func (d *MidwifeDetails) merge(patch Details) {
	p, ok := patch.(*MidwifeDetails)
	if !ok {
		return
	}
	mergeString(&d.CertificationNumber, p.CertificationNumber)
	mergeString(&d.Clinic, p.Clinic)
	mergeInt(&d.Experience, p.Experience)
	mergeStrings(&d.Services, p.Services)
	mergeStrings(&d.Certifications, p.Certifications)
	d.Common.merge(p.Common)
}

// ServiceProviderDetails is submitted with role service_provider.
type ServiceProviderDetails struct {
	BusinessName       string   `json:"businessName"`
	BusinessType       string   `json:"businessType,omitempty"`
	RegistrationNumber string   `json:"registrationNumber,omitempty"`
	BusinessServices   []string `json:"businessServices,omitempty"`
	Common
}

func (*ServiceProviderDetails) Role() auth.Role { return auth.RoleServiceProvider }

func (d *ServiceProviderDetails) Clone() Details {
	out := *d
	out.BusinessServices = cloneStrings(d.BusinessServices)
	return &out
}

func (d *ServiceProviderDetails) validate(errs *validation.Errors) {
	errs.Required("businessName", d.BusinessName)
	d.Common.validate(errs)
}

func (d *ServiceProviderDetails) merge(patch Details) {
	p, ok := patch.(*ServiceProviderDetails)
	if !ok {
		return
	}
	mergeString(&d.BusinessName, p.BusinessName)
	mergeString(&d.BusinessType, p.BusinessType)
	mergeString(&d.RegistrationNumber, p.RegistrationNumber)
	mergeStrings(&d.BusinessServices, p.BusinessServices)
	d.Common.merge(p.Common)
}

// NewDetails returns an empty details value for role.
func NewDetails(role auth.Role) (Details, error) {
	switch role {
	case auth.RoleDoctor:
		return &DoctorDetails{}, nil
	case auth.RoleMidwife:
		return &MidwifeDetails{}, nil
	case auth.RoleServiceProvider:
		return &ServiceProviderDetails{}, nil
	}
	return nil, ErrInvalidRole
}

// DecodeDetails decodes the JSON detail bag for role. Fields belonging to other
// roles are ignored.
func DecodeDetails(role auth.Role, raw json.RawMessage) (Details, error) {
	d, err := NewDetails(role)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode %s details: %w", role, err)
	}
	return d, nil
}

func validateExperience(errs *validation.Errors, v *int) {
	if v != nil && (*v < 0 || *v > 80) {
		errs.Add("experience", "experience must be between 0 and 80 years")
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst **int, v *int) {
	if v != nil {
		*dst = cloneInt(v)
	}
}

func mergeStrings(dst *[]string, v []string) {
	if v != nil {
		*dst = cloneStrings(v)
	}
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func cloneStrings(v []string) []string {
	if v == nil {
		return nil
	}
	return append([]string{}, v...)
}
