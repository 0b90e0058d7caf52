package database

type SeenRepository interface {
	LoadIDs() ([]string, error)
	InsertIDs(ids []string) (int, error)
	Count() (int, error)
}
