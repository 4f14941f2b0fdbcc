package service

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// GroupsService checks group membership against the remote groups service,
// behind a circuit breaker. The fallback answer is true: during an outage
// the system prefers accepting an expense from a non-verified member over
// blocking all expense recording. That permissiveness is a documented
// availability tradeoff and must not be silently tightened.
type GroupsService struct {
	baseURL string
	client  *http.Client
	breaker *CircuitBreaker
}

// NewGroupsService creates a membership client against the groups service
// base URL. The timeout doubles as the breaker's slow-call failure bound.
func NewGroupsService(baseURL string, timeout time.Duration, breaker *CircuitBreaker) *GroupsService {
	return &GroupsService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

// IsMember reports whether userID belongs to groupID. A 404 from the remote
// means "not a member", not an error. Remote failures and an open breaker
// both resolve to the permissive fallback.
func (s *GroupsService) IsMember(groupID, userID string) bool {
	if !s.breaker.Allow() {
		log.Printf("membership check short-circuited (breaker %s), allowing user %s in group %s",
			s.breaker.State(), userID, groupID)
		return true
	}

	isMember, err := s.fetchMembership(groupID, userID)
	if err != nil {
		s.breaker.RecordFailure()
		log.Printf("groups service unreachable, allowing user %s in group %s: %v", userID, groupID, err)
		return true
	}

	s.breaker.RecordSuccess()
	return isMember
}

func (s *GroupsService) fetchMembership(groupID, userID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/api/v1/groups/%s/members/%s",
		s.baseURL, url.PathEscape(groupID), url.PathEscape(userID))

	resp, err := s.client.Get(endpoint)
	if err != nil {
		return false, fmt.Errorf("request groups service: %w", err)
	}
	defer resp.Body.Close()

	// group or user unknown: a definitive no, not a service failure
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("groups service returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read groups response: %w", err)
	}

	var payload struct {
		IsMember bool `json:"isMember"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, fmt.Errorf("decode groups response: %w", err)
	}
	return payload.IsMember, nil
}
