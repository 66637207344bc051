package config

import "formbot/model"

// Builtin returns the fallback catalog served when no config source is
// set or the remote config cannot be used.
func Builtin() Config {
	return Config{
		Welcome: "Hello! Use /forms to pick a form and submit a post for review.",
		Templates: []model.Template{
			{
				Title:    "Suggestion",
				Complete: "Thanks! Your suggestion was sent to the reviewers.",
				ToEnd:    "Submitted via the suggestion form.",
				Entries: []model.Entry{
					{
						Mode:      model.ModeText,
						Title:     "Title",
						Incorrect: "Please send the title as plain text.",
					},
					{
						Mode:        model.ModeText,
						Title:       "Description",
						Description: "Describe your suggestion in a few sentences.",
						Incorrect:   "Please send the description as plain text.",
					},
					{
						Mode:      model.ModeURL,
						Title:     "Link",
						Skippable: true,
						Incorrect: "That doesn't look like a link, send a full URL or skip.",
					},
					{
						Mode:      model.ModeFile,
						Title:     "Attachment",
						Skippable: true,
						Incorrect: "Please attach a file or skip.",
					},
				},
			},
		},
	}
}
