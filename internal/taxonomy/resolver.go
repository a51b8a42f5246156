// Package taxonomy maps free-text subject/topic names to Disciplina/Topico ids,
// creating the records that do not exist yet.
package taxonomy

import (
	"context"
	"strings"

	"golang.org/x/text/cases"

	"github.com/mind-engage/mindengage-study/internal/apperr"
	"github.com/mind-engage/mindengage-study/internal/logger"
	"github.com/mind-engage/mindengage-study/internal/model"
	"github.com/mind-engage/mindengage-study/internal/store"
)

type topicKey struct {
	subjectID string
	parentID  string
	name      string
}

// Created records a taxonomy row written during a run, in creation order.
type Created struct {
	Collection string
	ID         string
	Name       string
}

type Resolution struct {
	SubjectID string
	TopicID   string
	// EffectiveTopicID is the sub-topic when one was given, else TopicID.
	EffectiveTopicID string
}

// Resolver caches lookups for the lifetime of one import run. It is not safe for concurrent use.
type Resolver struct {
	store    store.Store
	log      *logger.Logger
	fold     cases.Caser
	subjects map[string]string
	topics   map[topicKey]string
	created  []Created
	loaded   bool
}

func NewResolver(s store.Store, log *logger.Logger) *Resolver {
	return &Resolver{
		store:    s,
		log:      logger.OrNop(log),
		fold:     cases.Fold(),
		subjects: map[string]string{},
		topics:   map[topicKey]string{},
	}
}

func (r *Resolver) key(name string) string {
	return r.fold.String(strings.Join(strings.Fields(name), " "))
}

// Load pre-populates both caches from a full listing. Resolve calls it on first use.
func (r *Resolver) Load(ctx context.Context) error {
	subjects, err := store.ListAs[model.Subject](ctx, r.store, store.Subjects, nil)
	if err != nil {
		return err
	}
	topics, err := store.ListAs[model.Topic](ctx, r.store, store.Topics, nil)
	if err != nil {
		return err
	}
	for _, s := range subjects {
		k := r.key(s.Name)
		if _, dup := r.subjects[k]; !dup {
			r.subjects[k] = s.ID
		}
	}
	for _, t := range topics {
		k := topicKey{subjectID: t.SubjectID, parentID: t.ParentID, name: r.key(t.Name)}
		if _, dup := r.topics[k]; !dup {
			r.topics[k] = t.ID
		}
	}
	r.loaded = true
	return nil
}

// Resolve returns ids for subject, topic and optional sub-topic, creating what is missing.
// Names keep their original casing when stored; lookups ignore case and surrounding space.
func (r *Resolver) Resolve(ctx context.Context, subject, topic, subtopic string) (Resolution, error) {
	subject, topic, subtopic = strings.TrimSpace(subject), strings.TrimSpace(topic), strings.TrimSpace(subtopic)
	if subject == "" {
		return Resolution{}, apperr.Invalid("disciplina", "required")
	}
	if topic == "" {
		return Resolution{}, apperr.Invalid("topico", "required")
	}
	if !r.loaded {
		if err := r.Load(ctx); err != nil {
			return Resolution{}, err
		}
	}

	subjectID, err := r.subject(ctx, subject)
	if err != nil {
		return Resolution{}, err
	}
	topicID, err := r.topic(ctx, subjectID, "", topic)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{SubjectID: subjectID, TopicID: topicID, EffectiveTopicID: topicID}
	if subtopic != "" {
		subID, err := r.topic(ctx, subjectID, topicID, subtopic)
		if err != nil {
			return Resolution{}, err
		}
		res.EffectiveTopicID = subID
	}
	return res, nil
}

func (r *Resolver) subject(ctx context.Context, name string) (string, error) {
	k := r.key(name)
	if id, ok := r.subjects[k]; ok {
		return id, nil
	}
	created, err := store.CreateAs(ctx, r.store, store.Subjects, model.Subject{Name: name, Order: len(r.subjects)})
	if err != nil {
		return "", err
	}
	r.subjects[k] = created.ID
	r.created = append(r.created, Created{Collection: store.Subjects, ID: created.ID, Name: name})
	r.log.Info("taxonomy: created subject", "id", created.ID, "name", name)
	return created.ID, nil
}

func (r *Resolver) topic(ctx context.Context, subjectID, parentID, name string) (string, error) {
	k := topicKey{subjectID: subjectID, parentID: parentID, name: r.key(name)}
	if id, ok := r.topics[k]; ok {
		return id, nil
	}
	created, err := store.CreateAs(ctx, r.store, store.Topics, model.Topic{
		SubjectID: subjectID,
		ParentID:  parentID,
		Name:      name,
		Order:     len(r.topics),
	})
	if err != nil {
		return "", err
	}
	r.topics[k] = created.ID
	r.created = append(r.created, Created{Collection: store.Topics, ID: created.ID, Name: name})
	r.log.Info("taxonomy: created topic", "id", created.ID, "name", name, "subject_id", subjectID, "parent_id", parentID)
	return created.ID, nil
}

// Created lists the records this run wrote.
func (r *Resolver) Created() []Created {
	return append([]Created(nil), r.created...)
}

// Rollback deletes everything this run created, newest first, and clears the caches.
func (r *Resolver) Rollback(ctx context.Context) error {
	byColl := map[string][]string{}
	for i := len(r.created) - 1; i >= 0; i-- {
		c := r.created[i]
		byColl[c.Collection] = append(byColl[c.Collection], c.ID)
	}
	// sub-topics and topics go before the subjects they point at
	for _, coll := range []string{store.Topics, store.Subjects} {
		if err := r.store.BulkDelete(ctx, coll, byColl[coll]); err != nil {
			return err
		}
	}
	r.log.Warn("taxonomy: rolled back created records", "count", len(r.created))
	r.created = nil
	r.subjects = map[string]string{}
	r.topics = map[topicKey]string{}
	r.loaded = false
	return nil
}
