/*
Package workflow declares task trees of shell commands in YAML.

	name: site
	tasks:
	  - name: render
	    command: pandoc
	    args: [index.md, -o, public/index.html]
	    inputs: [index.md]
	    outputs: [public/index.html]
	  - group:
	      - name: css
	        command: sass
	        args: [style.scss, public/style.css]
	        inputs: [style.scss]
	        outputs: [public/style.css]

Every step becomes a task whose inputs are its input files, its params and
its own command line. Outputs are created empty when missing so that they can
be tracked before the first run.
*/
package workflow
