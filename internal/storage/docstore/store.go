// Package docstore реализует общее файловое хранилище коллекций:
// одна логическая коллекция — один JSON-документ на диске. Одним и тем же
// механизмом пользуются товары, пользователи, заказы и корзины.
package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Configuration — служебный под-документ коллекции. Счётчик nextId живёт
// здесь, а не выводится из max(id)+1: идентификаторы остаются стабильными
// и не переиспользуются после удалений.
type Configuration struct {
	NextID      int64     `json:"nextId"`
	Version     int64     `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// envelope — форма коллекции на диске:
// {"<collection>": [...], "configuration": {...}}.
type envelope struct {
	Entities      []json.RawMessage
	Configuration Configuration
}

// Store — единственный логический writer процесса поверх каталога данных.
// Каждая запись заменяет коллекцию целиком; гонка независимых процессов на
// одном каталоге не защищена (побеждает последняя полная запись) — это
// принятое ограничение формата, см. DESIGN.md.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger *log.Entry
}

// New создаёт хранилище в каталоге dir, создавая его при необходимости.
func New(dir string, logger *log.Entry) (*Store, error) {
	if logger == nil {
		logger = log.WithField("component", "docstore")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// ReadAll возвращает глубокие копии документов коллекции: вызывающие
// никогда не алиасят сохранённое состояние.
func (s *Store) ReadAll(collection string) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load(collection)
	if err != nil {
		return nil, err
	}
	return copyDocs(env.Entities), nil
}

// WriteAll заменяет коллекцию целиком одной логической записью.
// Счётчик nextId при этом сохраняется.
func (s *Store) WriteAll(collection string, docs []json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load(collection)
	if err != nil {
		return err
	}
	env.Entities = copyDocs(docs)
	return s.persist(collection, env)
}

// NextID выдаёт очередной идентификатор из счётчика коллекции и
// немедленно персистит инкремент.
func (s *Store) NextID(collection string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load(collection)
	if err != nil {
		return 0, err
	}
	id := env.Configuration.NextID
	env.Configuration.NextID = id + 1
	if err := s.persist(collection, env); err != nil {
		return 0, err
	}
	return id, nil
}

// Config возвращает служебный под-документ коллекции.
func (s *Store) Config(collection string) (Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load(collection)
	if err != nil {
		return Configuration{}, err
	}
	return env.Configuration, nil
}

// Ping проверяет, что каталог данных доступен на запись (health check).
func (s *Store) Ping() error {
	probe := filepath.Join(s.dir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("data dir not writable: %w", err)
	}
	return os.Remove(probe)
}

// load читает envelope коллекции. Повреждённый payload логируется и
// заменяется пустой формой коллекции — ошибка парсинга никогда не
// поднимается к вызывающему (default-to-safe recovery).
func (s *Store) load(collection string) (envelope, error) {
	path := s.path(collection)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyEnvelope(), nil
		}
		return envelope{}, fmt.Errorf("read collection %s: %w", collection, err)
	}
	if len(raw) == 0 {
		return emptyEnvelope(), nil
	}

	var onDisk map[string]json.RawMessage
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		s.logger.WithError(err).WithField("collection", collection).
			Warn("corrupted collection payload, resetting to empty shape")
		env := emptyEnvelope()
		if persistErr := s.persist(collection, env); persistErr != nil {
			return envelope{}, persistErr
		}
		return env, nil
	}

	env := emptyEnvelope()
	if docs, ok := onDisk[collection]; ok {
		var entities []json.RawMessage
		if err := json.Unmarshal(docs, &entities); err != nil {
			s.logger.WithError(err).WithField("collection", collection).
				Warn("corrupted entity list, resetting to empty shape")
			env = emptyEnvelope()
			if persistErr := s.persist(collection, env); persistErr != nil {
				return envelope{}, persistErr
			}
			return env, nil
		}
		env.Entities = entities
	}
	if cfg, ok := onDisk["configuration"]; ok {
		var configuration Configuration
		if err := json.Unmarshal(cfg, &configuration); err != nil {
			s.logger.WithError(err).WithField("collection", collection).
				Warn("corrupted configuration sub-document, resetting counter")
			configuration = defaultConfiguration()
		}
		if configuration.NextID < 1 {
			configuration.NextID = 1
		}
		env.Configuration = configuration
	}

	return env, nil
}

// persist пишет envelope атомарно с точки зрения читателей этого процесса:
// во временный файл с последующим rename.
func (s *Store) persist(collection string, env envelope) error {
	env.Configuration.Version++
	env.Configuration.LastUpdated = time.Now().UTC()

	entities := env.Entities
	if entities == nil {
		entities = []json.RawMessage{}
	}
	onDisk := map[string]any{
		collection:      entities,
		"configuration": env.Configuration,
	}
	// Компактная сериализация: документы переживают цикл записи-чтения
	// байт в байт, включая вложенные json.RawMessage.
	raw, err := json.Marshal(onDisk)
	if err != nil {
		return fmt.Errorf("marshal collection %s: %w", collection, err)
	}

	path := s.path(collection)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write collection %s: %w", collection, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace collection %s: %w", collection, err)
	}
	return nil
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func emptyEnvelope() envelope {
	return envelope{Entities: []json.RawMessage{}, Configuration: defaultConfiguration()}
}

func defaultConfiguration() Configuration {
	return Configuration{NextID: 1}
}

func copyDocs(docs []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		out[i] = append(json.RawMessage(nil), d...)
	}
	return out
}
