package accounts

import (
	"log"
	"net/http"
)

var validWorkDays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true,
	"thursday": true, "friday": true, "saturday": true, "sunday": true,
}

func (s *Service) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	prefs, err := s.Prefs.GetOrCreate(r.Context(), userID)
	if err != nil {
		log.Printf("error loading preferences for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to load preferences", "")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Service) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var update PreferencesUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Invalid request body", "")
		return
	}
	if authErr := validatePreferencesUpdate(&update); authErr != nil {
		writeJSON(w, http.StatusBadRequest, authErr)
		return
	}

	userID := GetUserIDFromContext(r.Context())
	prefs, err := s.Prefs.Update(r.Context(), userID, update)
	if err != nil {
		log.Printf("error updating preferences for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to update preferences", "")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Service) handleCompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	if err := s.Prefs.CompleteOnboarding(r.Context(), userID); err != nil {
		log.Printf("error completing onboarding for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to complete onboarding", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "onboarding completed"})
}

func validatePreferencesUpdate(update *PreferencesUpdate) *AuthError {
	if update.WorkingHoursStart != nil && !isTimeOfDay(*update.WorkingHoursStart) {
		return NewAuthError(ErrCodeValidation, "working_hours_start must be HH:MM", "working_hours_start")
	}
	if update.WorkingHoursEnd != nil && !isTimeOfDay(*update.WorkingHoursEnd) {
		return NewAuthError(ErrCodeValidation, "working_hours_end must be HH:MM", "working_hours_end")
	}
	for _, day := range update.WorkDays {
		if !validWorkDays[day] {
			return NewAuthError(ErrCodeValidation, "Invalid work day: "+day, "work_days")
		}
	}
	if update.PreferredMeetingDuration != nil && *update.PreferredMeetingDuration <= 0 {
		return NewAuthError(ErrCodeValidation, "preferred_meeting_duration must be positive", "preferred_meeting_duration")
	}
	return nil
}

// isTimeOfDay accepts "HH:MM" wall clock strings
func isTimeOfDay(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	hh := int(s[0]-'0')*10 + int(s[1]-'0')
	mm := int(s[3]-'0')*10 + int(s[4]-'0')
	for _, c := range []byte{s[0], s[1], s[3], s[4]} {
		if c < '0' || c > '9' {
			return false
		}
	}
	return hh < 24 && mm < 60
}
