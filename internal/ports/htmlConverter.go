package ports

type HTMLConverter interface {
	ToMarkdown(html string) (string, error)
}
