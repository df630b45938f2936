package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/httputil"
	"github.com/AdamBeresnev/bracket-engine/internal/middleware"
	"github.com/AdamBeresnev/bracket-engine/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type app struct {
	db          *sqlx.DB
	tournaments *service.TournamentService
	matches     *service.MatchService
	limiter     *middleware.RateLimiter
	metrics     http.Handler
}

type resultRequest struct {
	WinnerID uuid.UUID     `json:"winner_id"`
	Score    bracket.Score `json:"score"`
}

type advanceResponse struct {
	Matches   []bracket.Match `json:"matches"`
	Completed bool            `json:"completed"`
}

type placementResponse struct {
	PlayerID string `json:"player_id"`
	Rank     int    `json:"rank,omitempty"`
	// False until the tournament is completed
	Final bool `json:"final"`
}

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.PingContext(ctx); err != nil {
			httputil.InternalServerError(w, "Database unreachable", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", a.metrics)

	r.Route("/tournaments", func(r chi.Router) {
		r.Use(a.limiter.Handler)

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var in service.CreateInput
			if err := httputil.DecodeJSON(r, &in); err != nil {
				httputil.Error(w, err)
				return
			}
			tournament, err := a.tournaments.CreateTournament(r.Context(), in)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, tournament)
		})

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			filter, err := listFilter(r)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			tournaments, err := a.tournaments.ListTournaments(r.Context(), filter)
			if err != nil {
				httputil.Error(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, tournaments)
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				id, ok := uuidParam(w, r, "id")
				if !ok {
					return
				}
				data, err := a.tournaments.GetTournamentData(r.Context(), id)
				if err != nil {
					httputil.Error(w, err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, data)
			})

			r.Post("/participants", func(w http.ResponseWriter, r *http.Request) {
				id, ok := uuidParam(w, r, "id")
				if !ok {
					return
				}
				var in service.RegisterInput
				if err := httputil.DecodeJSON(r, &in); err != nil {
					httputil.Error(w, err)
					return
				}
				participant, err := a.tournaments.RegisterParticipant(r.Context(), id, in)
				if err != nil {
					httputil.Error(w, err)
					return
				}
				httputil.WriteJSON(w, http.StatusCreated, participant)
			})

			r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
				id, ok := uuidParam(w, r, "id")
				if !ok {
					return
				}
				matches, err := a.tournaments.StartTournament(r.Context(), id)
				if err != nil {
					httputil.Error(w, err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, matches)
			})

			r.Post("/cancel", func(w http.ResponseWriter, r *http.Request) {
				id, ok := uuidParam(w, r, "id")
				if !ok {
					return
				}
				tournament, err := a.tournaments.CancelTournament(r.Context(), id)
				if err != nil {
					httputil.Error(w, err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, tournament)
			})

			r.Post("/advance", func(w http.ResponseWriter, r *http.Request) {
				id, ok := uuidParam(w, r, "id")
				if !ok {
					return
				}
				matches, completed, err := a.matches.AdvanceRound(r.Context(), id)
				if err != nil {
					httputil.Error(w, err)
					return
				}
				if matches == nil {
					matches = []bracket.Match{}
				}
				httputil.WriteJSON(w, http.StatusOK, advanceResponse{Matches: matches, Completed: completed})
			})

			r.Get("/standings", func(w http.ResponseWriter, r *http.Request) {
				id, ok := uuidParam(w, r, "id")
				if !ok {
					return
				}
				standings, err := a.tournaments.GetStandings(r.Context(), id)
				if err != nil {
					httputil.Error(w, err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, standings)
			})

			r.Get("/placements/{playerID}", func(w http.ResponseWriter, r *http.Request) {
				id, ok := uuidParam(w, r, "id")
				if !ok {
					return
				}
				playerID := chi.URLParam(r, "playerID")
				rank, final, err := a.tournaments.GetPlacement(r.Context(), id, playerID)
				if err != nil {
					httputil.Error(w, err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, placementResponse{PlayerID: playerID, Rank: rank, Final: final})
			})

			r.Route("/matches/{matchID}", func(r chi.Router) {
				r.Get("/", func(w http.ResponseWriter, r *http.Request) {
					id, matchID, ok := matchParams(w, r)
					if !ok {
						return
					}
					match, err := a.matches.GetMatch(r.Context(), id, matchID)
					if err != nil {
						httputil.Error(w, err)
						return
					}
					httputil.WriteJSON(w, http.StatusOK, match)
				})

				r.Post("/begin", func(w http.ResponseWriter, r *http.Request) {
					id, matchID, ok := matchParams(w, r)
					if !ok {
						return
					}
					match, err := a.matches.BeginMatch(r.Context(), id, matchID)
					if err != nil {
						httputil.Error(w, err)
						return
					}
					httputil.WriteJSON(w, http.StatusOK, match)
				})

				r.Post("/result", func(w http.ResponseWriter, r *http.Request) {
					id, matchID, ok := matchParams(w, r)
					if !ok {
						return
					}
					var req resultRequest
					if err := httputil.DecodeJSON(r, &req); err != nil {
						httputil.Error(w, err)
						return
					}
					match, err := a.matches.RecordResult(r.Context(), id, matchID, req.WinnerID, req.Score)
					if err != nil {
						httputil.Error(w, err)
						return
					}
					httputil.WriteJSON(w, http.StatusOK, match)
				})
			})
		})
	})

	return r
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("Invalid %s", name), err)
		return uuid.Nil, false
	}
	return id, true
}

func matchParams(w http.ResponseWriter, r *http.Request) (tournamentID, matchID uuid.UUID, ok bool) {
	if tournamentID, ok = uuidParam(w, r, "id"); !ok {
		return
	}
	matchID, ok = uuidParam(w, r, "matchID")
	return
}

// listFilter reads the optional status and format query parameters.
func listFilter(r *http.Request) (bracket.TournamentFilter, error) {
	var filter bracket.TournamentFilter
	query := r.URL.Query()
	if v := query.Get("status"); v != "" {
		status, err := bracket.ParseStatus(v)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if v := query.Get("format"); v != "" {
		format, err := bracket.ParseFormat(v)
		if err != nil {
			return filter, err
		}
		filter.Format = format
	}
	return filter, nil
}
