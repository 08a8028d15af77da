package usecase

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

// liveObject reads and parses the live settings through the single-slot cache.
func (s *ProfileStore) liveObject() (map[string]any, error) {
	content, err := s.liveCache.Get(s.livePath)
	if err != nil {
		return nil, err
	}
	obj, err := parseObject(content)
	if err != nil {
		return nil, domain.NewError(domain.ErrInvalidFormat, "parse", s.livePath, err)
	}
	return obj, nil
}

// compare classifies profile content against the parsed live settings.
// Exact equality is checked first; the ignored fields are only dropped
// once that fails.
func (s *ProfileStore) compare(live map[string]any, liveErr error, content string) domain.ActivationStatus {
	if liveErr != nil {
		return domain.ErrorStatus(fmt.Sprintf("live settings: %v", liveErr))
	}
	profile, err := parseObject(content)
	if err != nil {
		return domain.ErrorStatus(fmt.Sprintf("profile: %v", err))
	}

	if cmp.Equal(live, profile) {
		return domain.FullMatch
	}
	if len(s.cfg.IgnoredFields) > 0 &&
		cmp.Equal(withoutFields(live, s.cfg.IgnoredFields), withoutFields(profile, s.cfg.IgnoredFields)) {
		return domain.PartialMatch
	}
	return domain.NoMatch
}

// applyStatuses sets Status and IsActive on every profile, reading the live file once.
func (s *ProfileStore) applyStatuses(profiles []domain.Profile) error {
	live, liveErr := s.liveObject()
	if liveErr != nil {
		s.logger.Warn("cannot read live settings", zap.String("path", s.livePath), zap.Error(liveErr))
	}
	for i := range profiles {
		profiles[i].Status = s.compare(live, liveErr, profiles[i].Content)
		profiles[i].IsActive = profiles[i].Status.Kind == domain.StatusFullMatch
	}
	return liveErr
}

// StatusOf compares the named profile's scanned content with the live settings.
func (s *ProfileStore) StatusOf(name string) domain.ActivationStatus {
	profile, ok := s.Profile(name)
	if !ok {
		return domain.ErrorStatus(fmt.Sprintf("profile %q not found", name))
	}
	live, err := s.liveObject()
	return s.compare(live, err, profile.Content)
}

// CompareAll returns the status of every known profile, in name order.
func (s *ProfileStore) CompareAll() []domain.ProfileStatus {
	profiles := s.Profiles()
	live, liveErr := s.liveObject()

	out := make([]domain.ProfileStatus, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, domain.ProfileStatus{Name: p.Name, Status: s.compare(live, liveErr, p.Content)})
	}
	return out
}

// ActiveProfile returns the first fully matching profile name, if any.
func (s *ProfileStore) ActiveProfile() (string, bool) {
	for _, st := range s.CompareAll() {
		if st.Status.Kind == domain.StatusFullMatch {
			return st.Name, true
		}
	}
	return "", false
}

// Diff renders the difference from the live settings (-) to the named profile (+).
// It returns "" when they are equal.
func (s *ProfileStore) Diff(name string) (string, error) {
	profile, ok := s.Profile(name)
	if !ok {
		return "", domain.NewError(domain.ErrNotFound, "diff", name, nil)
	}
	live, err := s.liveObject()
	if err != nil {
		return "", err
	}
	obj, err := parseObject(profile.Content)
	if err != nil {
		return "", domain.NewError(domain.ErrInvalidFormat, "diff", profile.Path, err)
	}
	return cmp.Diff(live, obj), nil
}
