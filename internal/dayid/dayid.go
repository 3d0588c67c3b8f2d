// Package dayid содержит единственное определение игрового дня.
// Все компоненты сервиса обязаны использовать именно его: расхождение в
// границе дня незаметно ломает все последующие инварианты расчётов.
package dayid

import "time"

const (
	millisPerDay  = int64(86_400_000)
	secondsPerDay = int64(86_400)
)

// FromTime возвращает идентификатор игрового дня для момента времени:
// целое число полных UTC-суток с начала эпохи.
func FromTime(t time.Time) int64 {
	ms := t.UTC().UnixMilli()
	if ms < 0 {
		// До эпохи деление в Go округляет к нулю, а нужен floor.
		return (ms - millisPerDay + 1) / millisPerDay
	}
	return ms / millisPerDay
}

// StartTime возвращает момент начала игрового дня.
// Единственное место перевода идентификатора дня в момент времени;
// арифметика моментов всюду ведётся в секундах.
func StartTime(dayID int64) time.Time {
	return time.Unix(dayID*secondsPerDay, 0).UTC()
}

// Bounds возвращает включительный диапазон меток времени дня в
// миллисекундах эпохи — для выборки сессий из хранилища.
func Bounds(dayID int64) (fromMillis, toMillis int64) {
	return dayID * millisPerDay, (dayID+1)*millisPerDay - 1
}

// Yesterday возвращает идентификатор последнего завершившегося дня
// относительно переданного момента.
func Yesterday(now time.Time) int64 {
	return FromTime(now) - 1
}
