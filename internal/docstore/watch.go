package docstore

import "context"

// WatchFunc receives the full result set of a watched query.
type WatchFunc func(docs []Document)

type watcher struct {
	collection string
	query      Query
	fn         WatchFunc
	notify     chan struct{}
}

// Watch delivers the current result of q to fn and again after every
// committed write to collection, until ctx is cancelled or the store closes.
// fn runs on a dedicated goroutine; bursts of writes may be coalesced.
func (s *Store) Watch(ctx context.Context, collection string, q Query, fn WatchFunc) error {
	w := &watcher{
		collection: collection,
		query:      q,
		fn:         fn,
		notify:     make(chan struct{}, 1),
	}
	s.addWatcher(w)

	initial, err := s.Query(ctx, collection, q)
	if err != nil {
		s.removeWatcher(w)
		return err
	}

	go s.runWatcher(ctx, w, initial)
	return nil
}

func (s *Store) runWatcher(ctx context.Context, w *watcher, initial []Document) {
	defer s.removeWatcher(w)

	w.fn(initial)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		case <-w.notify:
			docs, err := s.Query(ctx, w.collection, w.query)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error().Err(err).Str("collection", w.collection).Msg("Watch query failed")
				continue
			}
			w.fn(docs)
		}
	}
}

func (s *Store) addWatcher(w *watcher) {
	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()
}

func (s *Store) removeWatcher(w *watcher) {
	s.mu.Lock()
	delete(s.watchers, w)
	s.mu.Unlock()
}

func (s *Store) notify(collections ...string) {
	if len(collections) == 0 {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for w := range s.watchers {
		for _, c := range collections {
			if w.collection != c {
				continue
			}
			select {
			case w.notify <- struct{}{}:
			default:
			}
			break
		}
	}
}
