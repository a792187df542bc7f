package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/staranto/runctlgo/internal/meta"
	"github.com/urfave/cli/v3"
)

const bashCompletionScript = `# bash completion for runctl
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_runctl()
{
    local cur prev cmd sub
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "deploy services revisions secrets iam logs apis config auth completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    sub=${COMP_WORDS[2]}
  local common="--attrs -a --color -c --filter -f --output -o --sort -s --titles -t --tldr"
  local target="--project -p --region --account --home"

    case "$cmd" in
        deploy)
      local opts="$common $target --manifest -m --service --image --port --set-env --set-secrets --min-instances --max-instances --concurrency --cpu-always-allocated --ingress --service-account --dockerfile"
            ;;
        services)
            if [[ ${COMP_CWORD} -eq 2 ]]; then
                COMPREPLY=( $(compgen -W "list describe update delete stop start" -- "$cur") )
                return 0
            fi
      local opts="$common $target --image --port --set-env --set-secrets --min-instances --max-instances --concurrency --ingress --service-account"
            ;;
        revisions)
            if [[ ${COMP_CWORD} -eq 2 ]]; then
                COMPREPLY=( $(compgen -W "list diff" -- "$cur") )
                return 0
            fi
      local opts="$common $target"
            ;;
        secrets)
            if [[ ${COMP_CWORD} -eq 2 ]]; then
                COMPREPLY=( $(compgen -W "create list add-version versions access enable disable destroy delete" -- "$cur") )
                return 0
            fi
      local opts="$common $target --version --data-file --label --passphrase"
            ;;
        iam)
            if [[ ${COMP_CWORD} -eq 2 ]]; then
                COMPREPLY=( $(compgen -W "bind unbind policy" -- "$cur") )
                return 0
            fi
      local opts="$target --role --member"
            ;;
        logs)
            if [[ ${COMP_CWORD} -eq 2 ]]; then
                COMPREPLY=( $(compgen -W "read tail export" -- "$cur") )
                return 0
            fi
      local opts="$common $target --severity --service --revision --limit --freshness --interval --bucket --prefix --bucket-region --profile"
            ;;
        apis)
            if [[ ${COMP_CWORD} -eq 2 ]]; then
                COMPREPLY=( $(compgen -W "enable disable list" -- "$cur") )
                return 0
            fi
            if [[ ${COMP_CWORD} -eq 3 && ( "$sub" == "enable" || "$sub" == "disable" ) ]]; then
                COMPREPLY=( $(compgen -W "run secretmanager logging" -- "$cur") )
                return 0
            fi
      local opts="$common $target"
            ;;
        config)
            if [[ ${COMP_CWORD} -eq 2 ]]; then
                COMPREPLY=( $(compgen -W "get set list" -- "$cur") )
                return 0
            fi
            local opts=""
            ;;
        auth)
            if [[ ${COMP_CWORD} -eq 2 ]]; then
                COMPREPLY=( $(compgen -W "login whoami" -- "$cur") )
                return 0
            fi
      local opts="$target"
            ;;
        completion)
            local opts="bash zsh"
            COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
            return 0
            ;;
        *)
            local opts="$common"
            ;;
    esac

    if [[ "$prev" == "--output" || "$prev" == "-o" ]]; then
        COMPREPLY=( $(compgen -W "text json raw yaml" -- "$cur") )
        return 0
    fi

    if [[ "$prev" == "--severity" ]]; then
        COMPREPLY=( $(compgen -W "default debug info notice warning error critical" -- "$cur") )
        return 0
    fi

    if [[ "$prev" == "--ingress" ]]; then
        COMPREPLY=( $(compgen -W "all internal" -- "$cur") )
        return 0
    fi

    if [[ "$prev" == "--manifest" || "$prev" == "-m" || "$prev" == "--data-file" ]]; then
        COMPREPLY=( $(compgen -o default -- "$cur") )
        return 0
    fi

    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
    return 0
}

complete -F _runctl runctl
`

const zshCompletionScript = `#compdef runctl

_runctl() {
  local -a cmds
  cmds=(
    'deploy:deploy a service from a manifest'
    'services:manage services'
    'revisions:list and diff revisions'
    'secrets:manage sealed secrets'
    'iam:manage resource policies'
    'logs:read, tail and export logs'
    'apis:enable and disable project APIs'
    'config:inspect and edit runctl.yaml'
    'auth:manage the caller identity'
    'completion:generate shell completion script'
  )

  local -a common
  common=(
  '(-a --attrs)'{-a,--attrs}'[attributes to include]:attrs'
  '(-c --color)'{-c,--color}'[enable colored text]'
  '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
  '(-o --output)'{-o,--output}'[output format]:format:(text json raw yaml)'
  '(-s --sort)'{-s,--sort}'[sort attributes]:attrs'
  '(-t --titles)'{-t,--titles}'[show titles]'
  '--tldr[show tldr page]'
  )

  local -a target
  target=(
  '(-p --project)'{-p,--project}'[target project]:project'
  '--region[target region]:region'
  '--account[caller identity]:member'
  '--home[platform state directory]:dir:_directories'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'runctl commands' cmds
    return
  fi

  local curcontext="$curcontext" state line
  case $words[2] in
    deploy)
      _arguments -C \
        $common \
        $target \
        '(-m --manifest)'{-m,--manifest}'[manifest file]:file:_files' \
        '--service[service name]:name' \
        '--image[container image]:image' \
        '--port[container port]:port' \
        '*--set-env[environment variable]:kv' \
        '*--set-secrets[secret binding]:kv' \
        '--min-instances[minimum instances]:n' \
        '--max-instances[maximum instances]:n' \
        '--concurrency[requests per instance]:n' \
        '--cpu-always-allocated[keep cpu allocated]' \
        '--ingress[ingress mode]:mode:(all internal)' \
        '--service-account[runtime identity]:member' \
        '--dockerfile[print the Dockerfile and exit]'
      ;;
    services)
      _arguments -C \
        '1: :((list describe update delete stop start))' \
        $common \
        $target
      ;;
    revisions)
      _arguments -C \
        '1: :((list diff))' \
        $common \
        $target
      ;;
    secrets)
      _arguments -C \
        '1: :((create list add-version versions access enable disable destroy delete))' \
        $common \
        $target \
        '--version[version spec]:version' \
        '--data-file[payload file]:file:_files' \
        '*--label[label as KEY=VALUE]:kv' \
        '--passphrase[seal passphrase]'
      ;;
    iam)
      _arguments -C \
        '1: :((bind unbind policy))' \
        $target \
        '--role[role name]:role' \
        '--member[member]:member'
      ;;
    logs)
      _arguments -C \
        '1: :((read tail export))' \
        $common \
        $target \
        '--severity[minimum severity]:severity:(default debug info notice warning error critical)' \
        '--service[service name]:name' \
        '--revision[revision name]:name' \
        '--limit[newest N entries]:n' \
        '--freshness[only entries newer than this]:duration' \
        '--interval[poll interval]:duration' \
        '--bucket[destination bucket]:bucket' \
        '--prefix[object key prefix]:prefix' \
        '--bucket-region[bucket region]:region' \
        '--profile[AWS profile]:profile'
      ;;
    apis)
      _arguments -C \
        '1: :((enable disable list))' \
        '2: :((run secretmanager logging))' \
        $common \
        $target
      ;;
    config)
      _arguments '1: :((get set list))'
      ;;
    auth)
      _arguments -C \
        '1: :((login whoami))' \
        $target
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
    *)
      _arguments -C $common
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _runctl runctl runctlgo
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	switch shell {
	case "bash":
		fmt.Fprint(os.Stdout, bashCompletionScript)
	case "zsh":
		fmt.Fprint(os.Stdout, zshCompletionScript)
	default:
		// Try to detect from SHELL or print help
		sh := os.Getenv("SHELL")
		if strings.HasSuffix(sh, "zsh") {
			fmt.Fprint(os.Stdout, zshCompletionScript)
		} else if strings.HasSuffix(sh, "bash") {
			fmt.Fprint(os.Stdout, bashCompletionScript)
		} else {
			fmt.Fprintln(os.Stderr, "usage: runctl completion [bash|zsh]")
			return nil
		}
	}
	return nil
}

func CompletionCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "runctl completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
