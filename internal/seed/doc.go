// Package seed загружает начальные данные из YAML: схему полей, записи и bindings.
//
// Используется командой "rollup seed" для локального окружения и демо-данных.
// Записи пишутся через тот же RecordWriter, что и в хранилище воркера,
// поэтому fixture работает и с PostgreSQL, и с SQLite.
package seed
