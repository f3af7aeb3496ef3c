package tech

var catalog = []Technology{
	{
		ID: "react", Name: "React", Category: "frontend",
		Keywords:       []string{"react"},
		ContentPhrases: []string{"react component", "usestate", "useeffect", "jsx"},
		Packages:       []string{"react", "react-dom"},
	},
	{
		ID: "nextjs", Name: "Next.js", Category: "frontend",
		Keywords:       []string{"nextjs", "next.js", "next-js"},
		ContentPhrases: []string{"next.js", "app router", "getserversideprops"},
		ConfigFiles:    []string{"next.config.js", "next.config.mjs", "next.config.ts"},
		Packages:       []string{"next"},
	},
	{
		ID: "vue", Name: "Vue", Category: "frontend",
		Keywords:       []string{"vue"},
		ContentPhrases: []string{"vue component", "composition api"},
		Packages:       []string{"vue"},
	},
	{
		ID: "nuxt", Name: "Nuxt", Category: "frontend",
		Keywords:    []string{"nuxt"},
		ConfigFiles: []string{"nuxt.config.ts", "nuxt.config.js"},
		Packages:    []string{"nuxt"},
	},
	{
		ID: "svelte", Name: "Svelte", Category: "frontend",
		Keywords:        []string{"svelte"},
		ConfigFiles:     []string{"svelte.config.js"},
		Packages:        []string{"svelte"},
		PackagePrefixes: []string{"@sveltejs/"},
	},
	{
		ID: "angular", Name: "Angular", Category: "frontend",
		Keywords:        []string{"angular"},
		ConfigFiles:     []string{"angular.json"},
		PackagePrefixes: []string{"@angular/"},
	},
	{
		ID: "tailwind", Name: "Tailwind CSS", Category: "frontend",
		Keywords:       []string{"tailwind"},
		ContentPhrases: []string{"tailwind"},
		ConfigFiles:    []string{"tailwind.config.js", "tailwind.config.ts"},
		Packages:       []string{"tailwindcss"},
	},
	{
		ID: "shadcn", Name: "shadcn/ui", Category: "frontend",
		Keywords:       []string{"shadcn"},
		ContentPhrases: []string{"shadcn"},
		ConfigFiles:    []string{"components.json"},
	},
	{
		ID: "vite", Name: "Vite", Category: "tooling",
		Keywords:    []string{"vite"},
		ConfigFiles: []string{"vite.config.ts", "vite.config.js"},
		Packages:    []string{"vite"},
	},
	{
		ID: "typescript", Name: "TypeScript", Category: "language",
		Keywords:    []string{"typescript"},
		ConfigFiles: []string{"tsconfig.json"},
		Packages:    []string{"typescript"},
	},
	{
		ID: "javascript", Name: "JavaScript", Category: "language",
		Keywords: []string{"javascript"},
		Aliases:  []string{"nodejs", "node.js"},
	},
	{
		ID: "python", Name: "Python", Category: "language",
		Keywords:       []string{"python"},
		Aliases:        []string{"pypi", "pytest"},
		ContentPhrases: []string{"pip install", "python"},
		ConfigFiles:    []string{"pyproject.toml", "requirements.txt"},
	},
	{
		ID: "go", Name: "Go", Category: "language",
		Keywords:    []string{"golang", " go ", " go-", "-go ", "-go-"},
		ConfigFiles: []string{"go.mod"},
	},
	{
		ID: "rust", Name: "Rust", Category: "language",
		Keywords:       []string{"rustlang", " rust ", " rust-", "-rust ", "-rust-"},
		Aliases:        []string{"cargo"},
		ContentPhrases: []string{"cargo add", "cargo build"},
		ConfigFiles:    []string{"cargo.toml"},
	},
	{
		ID: "swift", Name: "Swift", Category: "language",
		Keywords:    []string{"swift"},
		Aliases:     []string{"swiftui"},
		ConfigFiles: []string{"package.swift"},
	},
	{
		ID: "node", Name: "Node.js", Category: "backend",
		Keywords: []string{"node-", "-node", " node "},
		Packages: []string{"express", "fastify", "koa"},
	},
	{
		ID: "nestjs", Name: "NestJS", Category: "backend",
		Keywords:        []string{"nestjs"},
		PackagePrefixes: []string{"@nestjs/"},
	},
	{
		ID: "django", Name: "Django", Category: "backend",
		Keywords: []string{"django"},
	},
	{
		ID: "fastapi", Name: "FastAPI", Category: "backend",
		Keywords: []string{"fastapi"},
	},
	{
		ID: "postgres", Name: "PostgreSQL", Category: "database",
		Keywords:       []string{"postgres"},
		Aliases:        []string{"psql"},
		ContentPhrases: []string{"postgresql"},
		Packages:       []string{"pg", "postgres"},
	},
	{
		ID: "mongodb", Name: "MongoDB", Category: "database",
		Keywords: []string{"mongo"},
		Packages: []string{"mongodb", "mongoose"},
	},
	{
		ID: "redis", Name: "Redis", Category: "database",
		Keywords: []string{"redis"},
		Packages: []string{"redis", "ioredis"},
	},
	{
		ID: "supabase", Name: "Supabase", Category: "database",
		Keywords:        []string{"supabase"},
		ContentPhrases:  []string{"supabase"},
		ConfigFiles:     []string{"supabase/config.toml"},
		PackagePrefixes: []string{"@supabase/"},
	},
	{
		ID: "prisma", Name: "Prisma", Category: "database",
		Keywords:        []string{"prisma"},
		ConfigFiles:     []string{"prisma/schema.prisma"},
		Packages:        []string{"prisma"},
		PackagePrefixes: []string{"@prisma/"},
	},
	{
		ID: "drizzle", Name: "Drizzle ORM", Category: "database",
		Keywords:    []string{"drizzle"},
		ConfigFiles: []string{"drizzle.config.ts"},
		Packages:    []string{"drizzle-orm", "drizzle-kit"},
	},
	{
		ID: "convex", Name: "Convex", Category: "database",
		Keywords: []string{"convex"},
		Packages: []string{"convex"},
	},
	{
		ID: "aws", Name: "AWS", Category: "cloud",
		Keywords:        []string{" aws ", " aws-", "-aws ", "-aws-", "aws-sdk"},
		Aliases:         []string{"lambda", "amazon"},
		Packages:        []string{"aws-sdk", "aws-cdk-lib"},
		PackagePrefixes: []string{"@aws-sdk/", "@aws-cdk/"},
	},
	{
		ID: "gcp", Name: "Google Cloud", Category: "cloud",
		Keywords:        []string{"gcp", "google-cloud", "google cloud"},
		Aliases:         []string{"firebase"},
		PackagePrefixes: []string{"@google-cloud/"},
	},
	{
		ID: "azure", Name: "Azure", Category: "cloud",
		Keywords:        []string{"azure"},
		PackagePrefixes: []string{"@azure/"},
	},
	{
		ID: "cloudflare", Name: "Cloudflare", Category: "cloud",
		Keywords:        []string{"cloudflare"},
		Aliases:         []string{"wrangler"},
		ConfigFiles:     []string{"wrangler.toml"},
		Packages:        []string{"wrangler"},
		PackagePrefixes: []string{"@cloudflare/"},
	},
	{
		ID: "vercel", Name: "Vercel", Category: "cloud",
		Keywords:        []string{"vercel"},
		ConfigFiles:     []string{"vercel.json"},
		PackagePrefixes: []string{"@vercel/"},
	},
	{
		ID: "docker", Name: "Docker", Category: "devops",
		Keywords:       []string{"docker"},
		Aliases:        []string{"container"},
		ContentPhrases: []string{"docker compose", "dockerfile"},
		ConfigFiles:    []string{"dockerfile", "docker-compose.yml", "docker-compose.yaml", "compose.yaml"},
	},
	{
		ID: "kubernetes", Name: "Kubernetes", Category: "devops",
		Keywords: []string{"kubernetes", "k8s"},
		Aliases:  []string{"kubectl", "helm"},
	},
	{
		ID: "terraform", Name: "Terraform", Category: "devops",
		Keywords: []string{"terraform"},
		Aliases:  []string{"opentofu"},
	},
	{
		ID: "github-actions", Name: "GitHub Actions", Category: "devops",
		Keywords: []string{"github-actions", "github actions", "gh-actions"},
	},
	{
		ID: "stripe", Name: "Stripe", Category: "service",
		Keywords:        []string{"stripe"},
		Packages:        []string{"stripe"},
		PackagePrefixes: []string{"@stripe/"},
	},
	{
		ID: "openai", Name: "OpenAI", Category: "ai",
		Keywords: []string{"openai"},
		Aliases:  []string{"gpt"},
		Packages: []string{"openai"},
	},
	{
		ID: "anthropic", Name: "Anthropic", Category: "ai",
		Keywords:        []string{"anthropic", "claude"},
		PackagePrefixes: []string{"@anthropic-ai/"},
	},
	{
		ID: "langchain", Name: "LangChain", Category: "ai",
		Keywords:        []string{"langchain"},
		Aliases:         []string{"langgraph"},
		Packages:        []string{"langchain"},
		PackagePrefixes: []string{"@langchain/"},
	},
	{
		ID: "mcp", Name: "Model Context Protocol", Category: "ai",
		Keywords:        []string{"mcp"},
		Aliases:         []string{"model context protocol", "model-context-protocol"},
		PackagePrefixes: []string{"@modelcontextprotocol/"},
	},
	{
		ID: "playwright", Name: "Playwright", Category: "testing",
		Keywords:        []string{"playwright"},
		ConfigFiles:     []string{"playwright.config.ts"},
		PackagePrefixes: []string{"@playwright/"},
	},
	{
		ID: "jest", Name: "Jest", Category: "testing",
		Keywords:    []string{"jest"},
		ConfigFiles: []string{"jest.config.js", "jest.config.ts"},
		Packages:    []string{"jest"},
	},
	{
		ID: "vitest", Name: "Vitest", Category: "testing",
		Keywords:    []string{"vitest"},
		ConfigFiles: []string{"vitest.config.ts"},
		Packages:    []string{"vitest"},
	},
	{
		ID: "expo", Name: "Expo", Category: "mobile",
		Keywords: []string{"expo-", " expo ", "-expo "},
		Packages: []string{"expo"},
	},
	{
		ID: "react-native", Name: "React Native", Category: "mobile",
		Keywords: []string{"react-native", "react native"},
		Packages: []string{"react-native"},
	},
	{
		ID: "graphql", Name: "GraphQL", Category: "api",
		Keywords:        []string{"graphql"},
		Packages:        []string{"graphql"},
		PackagePrefixes: []string{"@apollo/"},
	},
	{
		ID: "trpc", Name: "tRPC", Category: "api",
		Keywords:        []string{"trpc"},
		PackagePrefixes: []string{"@trpc/"},
	},
}
