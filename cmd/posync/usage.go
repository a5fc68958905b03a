package main

const commandListTemplate = `{{if .HasAvailableSubCommands}}Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}  {{rpad .Name .NamePadding }} {{.Short}}
{{end}}{{end}}
{{end}}{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

const subcommandUsageTemplate = `Usage:
  {{.UseLine}}
{{if .HasAvailableSubCommands}}  {{.CommandPath}} [command]
{{end}}
` + commandListTemplate

const rootUsageTemplate = `Usage:
  posync --source transifex|memsource|local [--destination transifex|memsource|none] [flags]
  {{.CommandPath}} [command]

Engines:
  transifex   Foreman project on Transifex (token: keychain or TX_TOKEN)
  memsource   Memsource project (--project-id, MEMSOURCE_USERNAME, MEMSOURCE_PASSWORD)
  local       directory of <resource>__<lang>.po files (--local-dir)

` + commandListTemplate
