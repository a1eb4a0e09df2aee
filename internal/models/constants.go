package models

// Коллекции документного хранилища
const (
	CollectionAppointments = "agendamentos"
	CollectionClients      = "clientes"
	CollectionServices     = "services"
	CollectionTransactions = "transactions"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const (
	TransactionRevenue = "revenue"
	TransactionExpense = "expense"
)

const (
	// CategoryWork категория выручки за выполненную запись
	CategoryWork = "Trabalho"

	// CategoryServices категория, по которой строится отчет по услугам
	CategoryServices = "Serviços"

	// CategoryOther название корзины для популярных услуг
	CategoryOther = "Outros"
)

const (
	// DefaultServiceDuration длительность услуги по умолчанию, минуты
	DefaultServiceDuration = 60

	// SlotMinutes длина одного слота расписания
	SlotMinutes = 60

	DateLayout = "2006-01-02"
	SlotLayout = "15:04"

	// DefaultDraftTTL время жизни черновика записи в Redis
	DefaultDraftTTL = 24 * 60 * 60 // 24 часа в секундах

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000

	// DraftRateLimitRequests количество запросов в окне
	DraftRateLimitRequests = 30

	// DraftRateLimitWindow окно ограничения частоты запросов
	DraftRateLimitWindow = 60 // 1 минута в секундах

	// SheetsCacheTTL время жизни кэша строк Google Sheets
	SheetsCacheTTL = 60 * 60 // 1 час в секундах
)

// DefaultTimeSlots is the working day schedule.
func DefaultTimeSlots() []string {
	return []string{
		"08:00", "09:00", "10:00", "11:00", "12:00", "13:00",
		"14:00", "15:00", "16:00", "17:00", "18:00",
	}
}

// Устаревшие значения, которые встречаются в перенесенных документах
var (
	legacyStatuses = map[string][]string{
		StatusPending:   {"pendente"},
		StatusCompleted: {"concluido", "concluído"},
		StatusCancelled: {"cancelado"},
	}
	legacyTransactionTypes = map[string][]string{
		TransactionRevenue: {"receitas", "receita"},
		TransactionExpense: {"despesas", "despesa"},
	}
)

func normalize(value string, aliases map[string][]string) string {
	for canonical, legacy := range aliases {
		for _, v := range legacy {
			if v == value {
				return canonical
			}
		}
	}
	return value
}

func withAliases(value string, aliases map[string][]string) []string {
	return append([]string{value}, aliases[value]...)
}

// NormalizeStatus maps legacy Portuguese status values onto the canonical ones.
func NormalizeStatus(status string) string {
	return normalize(status, legacyStatuses)
}

// NormalizeTransactionType maps legacy type values onto the canonical ones.
func NormalizeTransactionType(typ string) string {
	return normalize(typ, legacyTransactionTypes)
}

// StatusValues returns status followed by the legacy values stored for it.
func StatusValues(status string) []string {
	return withAliases(status, legacyStatuses)
}

// TransactionTypeValues returns typ followed by the legacy values stored for it.
func TransactionTypeValues(typ string) []string {
	return withAliases(typ, legacyTransactionTypes)
}
