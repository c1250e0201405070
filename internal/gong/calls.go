package gong

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	perr "gong-wizard-go/internal/errors"
	"gong-wizard-go/internal/types"
)

const stage = "fetch"

// Calls lists every call that started inside rng and yields it with its
// transcript. Batches are fetched concurrently, Concurrency at a time, and
// yielded in listing order. The first error ends the sequence.
func (c *Client) Calls(ctx context.Context, rng types.DateRange) iter.Seq2[types.Call, error] {
	return func(yield func(types.Call, error) bool) {
		if err := rng.Validate(); err != nil {
			yield(types.Call{}, perr.WithStage(err, stage))
			return
		}
		ids, err := c.listCallIDs(ctx, rng)
		if err != nil {
			yield(types.Call{}, perr.WithStage(err, stage))
			return
		}
		c.log.WithField("calls", len(ids)).WithField("range", rng.String()).Info("call list fetched")

		batches := chunk(ids, c.cfg.BatchSize)
		for start := 0; start < len(batches); start += c.cfg.Concurrency {
			window := batches[start:min(start+c.cfg.Concurrency, len(batches))]
			results := make([][]types.Call, len(window))

			g, gctx := errgroup.WithContext(ctx)
			for i, batch := range window {
				g.Go(func() error {
					calls, err := c.fetchBatch(gctx, rng, batch)
					results[i] = calls
					return err
				})
			}
			if err := g.Wait(); err != nil {
				yield(types.Call{}, perr.WithStage(err, stage))
				return
			}

			for _, calls := range results {
				for _, call := range calls {
					if !yield(call, nil) {
						return
					}
				}
			}
		}
	}
}

// listCallIDs walks the cursor-paged /v2/calls listing. The API answers 404
// when no call matches, which is an empty range rather than a failure.
func (c *Client) listCallIDs(ctx context.Context, rng types.DateRange) ([]string, error) {
	q := url.Values{}
	q.Set("fromDateTime", rng.From().Format(time.RFC3339))
	q.Set("toDateTime", rng.Until().Format(time.RFC3339))

	var ids []string
	for {
		var page callsPage
		if err := c.get(ctx, "/v2/calls", q, &page); err != nil {
			if isNotFound(err) {
				return ids, nil
			}
			return nil, err
		}
		for _, call := range page.Calls {
			ids = append(ids, call.ID)
		}
		if page.Records.Cursor == "" {
			return ids, nil
		}
		q.Set("cursor", page.Records.Cursor)
		if err := sleep(ctx, c.cfg.PageDelay); err != nil {
			return nil, perr.Wrap(err, perr.CodePartialFetch, "call listing interrupted")
		}
	}
}

func (c *Client) fetchBatch(ctx context.Context, rng types.DateRange, ids []string) ([]types.Call, error) {
	filter := callFilter{
		CallIDs:      ids,
		FromDateTime: rng.From().Format(time.RFC3339),
		ToDateTime:   rng.Until().Format(time.RFC3339),
	}

	meta := make(map[string]extensiveCall, len(ids))
	ereq := extensiveRequest{
		Filter: filter,
		ContentSelector: contentSelector{
			Context: "Extended",
			ExposedFields: exposedFields{
				Parties: true,
				Content: contentFields{Structure: true, Topics: true, Trackers: true, Brief: true, KeyPoints: true},
			},
		},
	}
	for {
		var page extensivePage
		if err := c.post(ctx, "/v2/calls/extensive", ereq, &page); err != nil {
			return nil, err
		}
		for _, ec := range page.Calls {
			meta[ec.MetaData.ID] = ec
		}
		if page.Records.Cursor == "" {
			break
		}
		ereq.Cursor = page.Records.Cursor
	}

	transcripts := make(map[string][]monologue, len(ids))
	treq := transcriptRequest{Filter: filter}
	for {
		var page transcriptPage
		if err := c.post(ctx, "/v2/calls/transcript", treq, &page); err != nil {
			return nil, err
		}
		for _, ct := range page.CallTranscripts {
			transcripts[ct.CallID] = ct.Transcript
		}
		if page.Records.Cursor == "" {
			break
		}
		treq.Cursor = page.Records.Cursor
	}

	calls := make([]types.Call, 0, len(ids))
	for _, id := range ids {
		ec, ok := meta[id]
		mono, hasTranscript := transcripts[id]
		if !ok || !hasTranscript {
			c.log.WithField("call_id", id).Warn("call missing metadata or transcript, skipped")
			continue
		}
		calls = append(calls, toCall(ec, mono, c.catalog))
	}
	return calls, nil
}

// toCall maps the wire shapes onto the engine's Call. Unknown affiliations are
// treated as external, and products are the trackers the catalog recognizes.
func toCall(ec extensiveCall, mono []monologue, catalog types.Catalog) types.Call {
	md := ec.MetaData
	call := types.Call{
		ID:          md.ID,
		ShortID:     types.ShortCallID(md.ID, md.Started),
		Title:       md.Title,
		Started:     md.Started,
		DurationSec: md.Duration,
		MeetingURL:  md.MeetingURL,
		Scope:       md.Scope,
		Brief:       ec.Content.Brief,
	}

	speakers := map[string]types.Party{}
	for _, p := range ec.Parties {
		party := types.Party{SpeakerID: p.SpeakerID, Name: p.Name, Title: p.Title, Affiliation: types.NormalizeAffiliation(p.Affiliation)}
		call.Parties = append(call.Parties, party)
		if p.SpeakerID != "" {
			speakers[p.SpeakerID] = party
		}
	}

	var trackerNames []string
	for _, t := range ec.Content.Trackers {
		call.Trackers = append(call.Trackers, types.Tracker{Name: t.Name, Count: t.Count})
		if t.Count > 0 {
			trackerNames = append(trackerNames, t.Name)
		}
	}
	call.Products = catalog.Recognize(trackerNames)

	for _, t := range ec.Content.Topics {
		call.Topics = append(call.Topics, types.Topic{Name: t.Name, Duration: t.Duration})
	}
	for _, kp := range ec.Content.KeyPoints {
		if s := strings.TrimSpace(kp.Text); s != "" {
			call.KeyPoints = append(call.KeyPoints, s)
		}
	}
	call.Account, call.Industry, call.Website = accountFields(ec.Context)

	for i, m := range mono {
		if len(m.Sentences) == 0 {
			continue
		}
		texts := make([]string, 0, len(m.Sentences))
		for _, s := range m.Sentences {
			texts = append(texts, s.Text)
		}
		u := types.Utterance{
			ID:          fmt.Sprintf("%s:%d", md.ID, i),
			CallID:      md.ID,
			SpeakerID:   m.SpeakerID,
			Affiliation: types.AffiliationExternal,
			Text:        strings.Join(texts, " "),
			StartMs:     m.Sentences[0].Start,
			EndMs:       m.Sentences[len(m.Sentences)-1].End,
		}
		if p, ok := speakers[m.SpeakerID]; ok {
			u.Speaker, u.SpeakerTitle, u.Affiliation = p.Name, p.Title, p.Affiliation
		}
		if t := strings.TrimSpace(m.Topic); t != "" {
			u.Topics = []string{t}
		}
		call.Utterances = append(call.Utterances, u)
	}
	return call
}

// accountFields reads Name, Industry and Website from the CRM context's Account object.
func accountFields(ctxs []callContext) (account, industry, website string) {
	for _, cx := range ctxs {
		for _, obj := range cx.Objects {
			if obj.ObjectType != "Account" {
				continue
			}
			for _, f := range obj.Fields {
				if f.Value == nil {
					continue
				}
				v := fmt.Sprint(f.Value)
				switch f.Name {
				case "Name":
					account = v
				case "Industry":
					industry = v
				case "Website":
					website = v
				}
			}
			return account, industry, website
		}
	}
	return "", "", ""
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for size < len(ids) {
		ids, out = ids[size:], append(out, ids[:size:size])
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
