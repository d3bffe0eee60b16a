package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/ballot/internal/adapters/api/rest"
	"github.com/vncsmyrnk/ballot/internal/config"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/services"
	"github.com/vncsmyrnk/ballot/internal/logging"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		logrus.Fatal(err)
	}

	var timeout time.Duration
	flag.DurationVar(&timeout, "timeout", time.Minute, "Overall time allowed for fetching results")
	flag.Parse()

	log := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)

	// results are public; no session is needed
	session := services.NewSessionStore(log)
	client, err := rest.NewClient(cfg.API.BaseURL, session, log, rest.WithTimeout(cfg.API.Timeout))
	if err != nil {
		log.Fatal(err)
	}
	resultsService := services.NewResultsService(rest.NewResultsClient(client))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info("Fetching results summary...")

	summary, err := resultsService.Summary(ctx)
	if err != nil {
		log.Fatalf("Error fetching results: %v", err)
	}

	if err := printSummary(os.Stdout, summary); err != nil {
		log.Fatal(err)
	}
}

func printSummary(out *os.File, summary *domain.ResultsSummary) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Votes cast:\t%d\n", summary.TotalVotesCast)
	fmt.Fprintf(w, "Participants:\t%d\n\n", summary.TotalParticipants)

	for _, p := range summary.Positions {
		fmt.Fprintf(w, "%s\t(%d votes)\n", p.Name, p.TotalVotes)
		for _, c := range p.Candidates {
			fmt.Fprintf(w, "  %s\t%d\t%.2f%%\n", c.Name, c.VoteCount, c.Percentage)
		}
		for _, s := range domain.SpecialResponses {
			if n, ok := p.ByType[s]; ok && n > 0 {
				fmt.Fprintf(w, "  %s\t%d\t\n", s.Label(), n)
			}
		}
		if leader, ok := p.Leader(); ok {
			fmt.Fprintf(w, "  leader:\t%s\t\n", leader.Name)
		}
		fmt.Fprintln(w, strings.Repeat("-", 24))
	}
	return w.Flush()
}
