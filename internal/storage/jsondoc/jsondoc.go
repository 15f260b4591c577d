// Package jsondoc реализует репозитории домена поверх файлового
// document store. Это персистентность по умолчанию — шим вместо настоящего
// бэкенда; продакшен-замена живёт в internal/storage/postgres.
package jsondoc

import (
	"encoding/json"
	"fmt"

	"github.com/cmoralesdiaz/almacen/internal/storage/docstore"
)

// Имена логических коллекций. Совпадают с ключом сущностей в envelope.
const (
	collectionProducts = "productos"
	collectionUsers    = "usuarios"
	collectionOrders   = "pedidos"
	collectionCarts    = "carritos"
	collectionShipping = "despacho"
)

// readTyped декодирует все документы коллекции в T. Ошибка декодирования
// отдельного документа — это уже ошибка программы (docstore гарантирует
// валидный JSON), поэтому она поднимается наверх.
func readTyped[T any](store *docstore.Store, collection string) ([]T, error) {
	raw, err := store.ReadAll(collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, doc := range raw {
		var item T
		if err := json.Unmarshal(doc, &item); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", collection, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// writeTyped кодирует документы и заменяет коллекцию целиком.
func writeTyped[T any](store *docstore.Store, collection string, items []T) error {
	raw := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		doc, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode %s document: %w", collection, err)
		}
		raw = append(raw, doc)
	}
	return store.WriteAll(collection, raw)
}
