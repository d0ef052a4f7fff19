package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SectionType identifies a topical section.
type SectionType string

const (
	SectionGeneral       SectionType = "GENERAL"
	SectionTechnology    SectionType = "TECHNOLOGY"
	SectionScience       SectionType = "SCIENCE"
	SectionArts          SectionType = "ARTS"
	SectionSports        SectionType = "SPORTS"
	SectionEntertainment SectionType = "ENTERTAINMENT"
	SectionGaming        SectionType = "GAMING"
	SectionNews          SectionType = "NEWS"
)

// SectionTypes lists all sections in display order.
var SectionTypes = []SectionType{
	SectionGeneral, SectionTechnology, SectionScience, SectionArts,
	SectionSports, SectionEntertainment, SectionGaming, SectionNews,
}

// SectionInfo is the static presentation data of a section.
type SectionInfo struct {
	DisplayName string
	Description string
	Color       string
}

// ParseSectionType uppercases s and checks it against the known sections.
func ParseSectionType(s string) (SectionType, error) {
	st := SectionType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := st.info(); !ok {
		return "", fmt.Errorf("unknown section %q", s)
	}
	return st, nil
}

func (s SectionType) Valid() bool {
	_, ok := s.info()
	return ok
}

func (s SectionType) info() (SectionInfo, bool) {
	switch s {
	case SectionGeneral:
		return SectionInfo{"General", "Discusiones generales", "#6b7280"}, true
	case SectionTechnology:
		return SectionInfo{"Tecnología", "Tecnología e informática", "#3b82f6"}, true
	case SectionScience:
		return SectionInfo{"Ciencia", "Ciencias y descubrimientos", "#10b981"}, true
	case SectionArts:
		return SectionInfo{"Artes", "Arte y cultura", "#8b5cf6"}, true
	case SectionSports:
		return SectionInfo{"Deportes", "Deportes y actividades físicas", "#ef4444"}, true
	case SectionEntertainment:
		return SectionInfo{"Entretenimiento", "Cine, música y televisión", "#f59e0b"}, true
	case SectionGaming:
		return SectionInfo{"Gaming", "Videojuegos y e-sports", "#ec4899"}, true
	case SectionNews:
		return SectionInfo{"Noticias", "Noticias actuales", "#6366f1"}, true
	}
	return SectionInfo{}, false
}

// Info returns display metadata, falling back to the raw identifier in gray.
func (s SectionType) Info() SectionInfo {
	if info, ok := s.info(); ok {
		return info
	}
	return SectionInfo{DisplayName: string(s), Color: "#6b7280"}
}

// Section is the reference data returned by the section endpoints.
type Section struct {
	ID              string      `json:"id"`
	SectionEnumType SectionType `json:"sectionEnumType"`
	SectionType     SectionType `json:"sectionType,omitempty"`
	DisplayName     string      `json:"displayName"`
	Description     string      `json:"description"`
	Status          string      `json:"status,omitempty"`
	PostCount       int         `json:"postCount"`
	CreatedDate     LocalTime   `json:"createdDate"`
	UpdatedDate     LocalTime   `json:"updatedDate"`
}

// Type returns the section identifier whichever field the backend filled.
func (s Section) Type() SectionType {
	if s.SectionEnumType != "" {
		return s.SectionEnumType
	}
	return s.SectionType
}

// SectionRef is the section embedded in a post payload.
type SectionRef struct {
	ID          string      `json:"id,omitempty"`
	SectionType SectionType `json:"sectionType,omitempty"`
	Name        string      `json:"name,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
}

// UnmarshalJSON accepts either an object or a bare section identifier.
func (r *SectionRef) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err == nil {
		*r = SectionRef{SectionType: SectionType(strings.ToUpper(raw))}
		return nil
	}
	type alias struct {
		ID              string      `json:"id"`
		SectionType     SectionType `json:"sectionType"`
		SectionEnumType SectionType `json:"sectionEnumType"`
		Name            string      `json:"name"`
		DisplayName     string      `json:"displayName"`
	}
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	r.ID = a.ID
	r.SectionType = a.SectionType
	if r.SectionType == "" {
		r.SectionType = a.SectionEnumType
	}
	r.Name = a.Name
	r.DisplayName = a.DisplayName
	return nil
}

// Label prefers the backend display name.
func (r SectionRef) Label() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	if r.Name != "" {
		return r.Name
	}
	return r.SectionType.Info().DisplayName
}
