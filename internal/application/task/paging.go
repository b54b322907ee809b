package task

const (
	// DefaultPageLimit используется когда limit не задан
	DefaultPageLimit = 100

	// MaxPageLimit верхняя граница размера страницы
	MaxPageLimit = 1000
)

// Pageable задает окно выборки offset/limit
type Pageable struct {
	Offset int
	Limit  int
}

// PageOf создает нормализованный Pageable
func PageOf(offset, limit int) Pageable {
	return Pageable{Offset: offset, Limit: limit}.Normalize()
}

// Normalize ограничивает offset снизу нулем, а limit диапазоном (0, MaxPageLimit]
func (p Pageable) Normalize() Pageable {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Page страница результатов.
// TotalItems равно количеству элементов в Content, а не общему числу задач в хранилище.
type Page[T any] struct {
	Content    []T
	TotalItems int
}

// NewPage оборачивает уже выбранные элементы в страницу
func NewPage[T any](content []T) Page[T] {
	if content == nil {
		content = make([]T, 0)
	}
	return Page[T]{
		Content:    content,
		TotalItems: len(content),
	}
}

// Paginate детерминированно вырезает окно из items.
// При offset >= len(items) возвращается пустая страница.
func Paginate[T any](items []T, pageable Pageable) Page[T] {
	p := pageable.Normalize()
	if p.Offset >= len(items) {
		return NewPage[T](nil)
	}

	end := min(p.Offset+p.Limit, len(items))
	content := make([]T, end-p.Offset)
	copy(content, items[p.Offset:end])

	return NewPage(content)
}
