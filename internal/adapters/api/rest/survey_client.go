package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"golang.org/x/sync/singleflight"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
)

const (
	activeSurveysPath   = "/api/voting/active-surveys"
	submitVotesPath     = "/api/voting/submit-votes"
	publicPositionsPath = "/api/voting/public/positions"
	publicSubmitPath    = "/api/voting/public/submit"
)

type SurveyClient struct {
	client  *Client
	submits singleflight.Group
}

func NewSurveyClient(client *Client) *SurveyClient {
	return &SurveyClient{client: client}
}

func (s *SurveyClient) FetchPositions(ctx context.Context, voter domain.Voter) ports.PositionsResult {
	if voter.IsLink() {
		body, outcome := s.client.do(ctx, request{
			method: http.MethodGet,
			path:   publicPositionsPath,
			query:  url.Values{"email": {voter.Email}, "token": {voter.LinkToken}},
		})
		if !outcome.OK() {
			return ports.PositionsResult{Outcome: outcome}
		}
		var resp publicPositionsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return ports.PositionsResult{Outcome: malformed(outcome.Status, err)}
		}
		return ports.PositionsResult{
			Outcome:     outcome,
			Positions:   positionsToDomain(resp.Positions),
			Participant: resp.Participant.toDomain(domain.RoleParticipant),
		}
	}

	body, outcome := s.client.do(ctx, request{
		method: http.MethodGet,
		path:   activeSurveysPath,
		bearer: true,
	})
	if !outcome.OK() {
		return ports.PositionsResult{Outcome: outcome}
	}
	var resp activeSurveysResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ports.PositionsResult{Outcome: malformed(outcome.Status, err)}
	}

	result := ports.PositionsResult{
		Outcome:     outcome,
		Participant: resp.Participant.toDomain(domain.RoleParticipant),
	}
	// The server groups every active position under a single survey.
	if len(resp.Surveys) > 0 {
		result.Positions = positionsToDomain(resp.Surveys[0].Positions)
	}
	return result
}

// SubmitVote posts the ballot. Calls for a ballot whose submission is still
// in flight join that request instead of sending another; the ballot ID also
// travels as the Idempotency-Key header so a server that honours it can
// collapse later retries.
//
// The shared request is detached from the first caller's cancellation but
// keeps its deadline. A caller that gives up gets a transient outcome while
// the request carries on for the others.
func (s *SurveyClient) SubmitVote(ctx context.Context, ballot domain.Ballot) ports.SubmitResult {
	ch := s.submits.DoChan(ballot.ID.String(), func() (any, error) {
		callCtx, cancel := detach(ctx)
		defer cancel()
		return s.submitVote(callCtx, ballot), nil
	})
	select {
	case r := <-ch:
		return r.Val.(ports.SubmitResult)
	case <-ctx.Done():
		return ports.SubmitResult{Outcome: transportOutcome(ctx.Err())}
	}
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return context.WithCancel(detached)
}

func (s *SurveyClient) submitVote(ctx context.Context, ballot domain.Ballot) ports.SubmitResult {
	req := request{
		method: http.MethodPost,
		header: http.Header{"Idempotency-Key": {ballot.ID.String()}},
	}
	payload := submitRequest{Votes: ballotToWire(ballot)}
	if ballot.Voter.IsLink() {
		req.path = publicSubmitPath
		payload.Email = ballot.Voter.Email
		payload.Token = ballot.Voter.LinkToken
	} else {
		req.path = submitVotesPath
		req.bearer = true
	}
	req.body = payload

	body, outcome := s.client.do(ctx, req)
	if !outcome.OK() {
		return ports.SubmitResult{Outcome: outcome}
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ports.SubmitResult{Outcome: malformed(outcome.Status, err)}
	}
	if resp.Message == "" && !resp.Success {
		return ports.SubmitResult{Outcome: malformed(outcome.Status, errMissingAck)}
	}
	outcome.Message = resp.Message
	return ports.SubmitResult{Outcome: outcome}
}
