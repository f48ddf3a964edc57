package markdown

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The English text doubles as the key.
const (
	msgUpdatedAt = "Updated %s"
	msgWikipedia = "See %s on Wikipedia"
	msgSeriewiki = "See %s on seriewikin"
	msgFoldoc    = "See %s in the free online dictionary of computing"
	msgRFC       = "RFC %s"
)

var messages = func() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(tag language.Tag, key, msg string) {
		if err := b.SetString(tag, key, msg); err != nil {
			panic(err)
		}
	}
	for _, key := range []string{msgUpdatedAt, msgWikipedia, msgSeriewiki, msgFoldoc, msgRFC} {
		set(language.English, key, key)
	}
	set(language.Swedish, msgUpdatedAt, "Uppdaterad %s")
	set(language.Swedish, msgWikipedia, "Se %s på wikipedia")
	set(language.Swedish, msgSeriewiki, "Se %s på seriewikin")
	set(language.Swedish, msgFoldoc, "Se %s i free online dictionary of computing")
	set(language.Swedish, msgRFC, "RFC %s")
	return b
}()

func printer(lang string) *message.Printer {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag, message.Catalog(messages))
}

func localize(lang, key string, args ...any) string {
	return printer(lang).Sprintf(key, args...)
}

func updatedAt(lang string, t time.Time) string {
	return localize(lang, msgUpdatedAt, t.Format("2006-01-02 15:04"))
}
